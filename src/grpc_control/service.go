package grpc_control

import (
	"context"
	"encoding/json"

	"market-sync/src/interfaces"
	"market-sync/src/logger"
	"market-sync/src/models"
	"market-sync/src/protocol"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlService gives local tools the same view and the same commands as a
// render client.
type ControlService struct {
	Store  interfaces.ISnapshotStore
	Sender interfaces.ICommandSender
	Logger *logger.Logger
}

// NewControlService creates a new instance of ControlService
func NewControlService(store interfaces.ISnapshotStore, sender interfaces.ICommandSender, log *logger.Logger) *ControlService {
	return &ControlService{
		Store:  store,
		Sender: sender,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// GetSnapshot returns the snapshot in its JSON shape. Numbers travel as
// doubles, so order ids above 2^53 lose precision.
func (s *ControlService) GetSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	raw, err := json.Marshal(s.Store.Snapshot())
	if err != nil {
		s.Logger.Error("gRPC: snapshot encode failed: %v", err)
		return nil, status.Errorf(codes.Internal, "encode snapshot: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "convert snapshot: %v", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// Submit accepts one command in its wire form, e.g. {"removeMarket": "BTC"}.
func (s *ControlService) Submit(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	raw, err := protojson.Marshal(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "encode command: %v", err)
	}
	cmd, err := protocol.DecodeCommand(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.Sender.Submit(cmd)
	s.Logger.Info("gRPC: submitted %s", cmd.CommandTag())
	return &emptypb.Empty{}, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) DismissNotice(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.Store.DismissNotice()
	return &emptypb.Empty{}, nil
}

// -----------------------------------------------------------------------------

// ListTimeFrames returns {name, symbol, seconds} for every time frame in
// ascending order.
func (s *ControlService) ListTimeFrames(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	all := models.AllTimeFrames()
	values := make([]interface{}, 0, len(all))
	for _, tf := range all {
		values = append(values, map[string]interface{}{
			"name":    tf.String(),
			"symbol":  tf.Symbol(),
			"seconds": tf.Duration().Seconds(),
		})
	}
	out, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build list: %v", err)
	}
	return out, nil
}
