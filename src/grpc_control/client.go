package grpc_control

import (
	"context"
	"encoding/json"
	"fmt"

	"market-sync/src/models"
	"market-sync/src/protocol"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlClient is the typed client used by local tools.
type ControlClient struct {
	conn *grpc.ClientConn
}

// Dial connects to the control service at target. Extra options are
// appended after insecure credentials.
func Dial(target string, opts ...grpc.DialOption) (*ControlClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial control service %s: %w", target, err)
	}
	return &ControlClient{conn: conn}, nil
}

func (c *ControlClient) Close() error {
	return c.conn.Close()
}

// -----------------------------------------------------------------------------

// SnapshotJSON returns the snapshot as JSON.
func (c *ControlClient) SnapshotJSON(ctx context.Context) ([]byte, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, getSnapshotMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return protojson.Marshal(out)
}

// Snapshot decodes SnapshotJSON. A market holding an order id that does not
// survive the trip through doubles comes back with empty trades, as any
// malformed trades field does; SnapshotJSON still shows them.
func (c *ControlClient) Snapshot(ctx context.Context) (models.MSnapshot, error) {
	raw, err := c.SnapshotJSON(ctx)
	if err != nil {
		return models.MSnapshot{}, err
	}
	snap := models.EmptySnapshot()
	if err := json.Unmarshal(raw, &snap); err != nil {
		return models.MSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// -----------------------------------------------------------------------------

func (c *ControlClient) Submit(ctx context.Context, cmd protocol.Command) error {
	raw, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	in := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, in); err != nil {
		return fmt.Errorf("convert command: %w", err)
	}
	return c.conn.Invoke(ctx, submitMethod, in, new(emptypb.Empty))
}

// -----------------------------------------------------------------------------

func (c *ControlClient) DismissNotice(ctx context.Context) error {
	return c.conn.Invoke(ctx, dismissNoticeMethod, &emptypb.Empty{}, new(emptypb.Empty))
}

// -----------------------------------------------------------------------------

func (c *ControlClient) TimeFrames(ctx context.Context) ([]models.TimeFrame, error) {
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, listTimeFramesMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	tfs := make([]models.TimeFrame, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		name := v.GetStructValue().GetFields()["name"].GetStringValue()
		tf, err := models.ParseTimeFrame(name)
		if err != nil {
			return nil, err
		}
		tfs = append(tfs, tf)
	}
	return tfs, nil
}
