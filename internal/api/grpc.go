package api

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// BacktestServiceName is the gRPC health service name reported for the
// backtest API.
const BacktestServiceName = "macross.Backtest"

// healthService tracks the serving status reported over gRPC.
type healthService struct {
	srv *health.Server
}

// newGRPCServer builds a gRPC server exposing the standard health service
// and server reflection.
func newGRPCServer() (*grpc.Server, *healthService) {
	gs := grpc.NewServer()
	h := &healthService{srv: health.NewServer()}
	healthpb.RegisterHealthServer(gs, h.srv)
	reflection.Register(gs)

	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.srv.SetServingStatus(BacktestServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return gs, h
}

func (h *healthService) serving() {
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.srv.SetServingStatus(BacktestServiceName, healthpb.HealthCheckResponse_SERVING)
}

func (h *healthService) shutdown() {
	h.srv.Shutdown()
}
