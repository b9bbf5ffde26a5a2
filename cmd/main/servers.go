package main

import (
	"context"
	"fmt"
	"net"

	"market-sync/src/config"
	control "market-sync/src/grpc_control"
	"market-sync/src/interfaces"
	"market-sync/src/logger"
	"market-sync/src/server"
	"market-sync/src/session"

	"google.golang.org/grpc"
)

type runningServers struct {
	bridge *server.BridgeServer
	grpc   *grpc.Server
}

// -----------------------------------------------------------------------------

// startServers orchestrates the startup of all server components
func startServers(
	ctx context.Context,
	conf *config.Config,
	appLogger *logger.Logger,
	sess *session.Session,
	journal interfaces.IJournal,
) *runningServers {
	out := &runningServers{}

	// 1. Render bridge
	out.bridge = server.NewBridgeServer(conf.MConfig, appLogger.Named("Bridge"), sess.Store, sess, sess.Connection, journal)
	go func() {
		if err := out.bridge.Start(ctx); err != nil {
			appLogger.Error("Bridge failed: %v", err)
		}
	}()

	// 2. gRPC Control Server
	if conf.GrpcPort == 0 {
		appLogger.Info("Control service disabled")
		return out
	}
	addr := fmt.Sprintf("%s:%d", conf.GrpcHost, conf.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		appLogger.Critical("failed to listen for gRPC: %v", err)
		return out
	}
	out.grpc = grpc.NewServer()
	controlService := control.NewControlService(sess.Store, sess, appLogger.Named("ControlService"))
	control.RegisterControlServer(out.grpc, controlService)

	go func() {
		appLogger.Info("Starting gRPC Control Server on %s", addr)
		if err := out.grpc.Serve(lis); err != nil {
			appLogger.Error("failed to serve gRPC: %v", err)
		}
	}()
	return out
}

// -----------------------------------------------------------------------------

func (r *runningServers) stop(ctx context.Context) {
	if r.grpc != nil {
		r.grpc.GracefulStop()
	}
	if r.bridge != nil {
		r.bridge.Stop(ctx)
	}
}
