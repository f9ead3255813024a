package grpc

import (
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/mqtt"
)

// IngestServiceName is the health service name that tracks the broker session.
const IngestServiceName = "fire_alarm.Ingest"

// IOTServer exposes grpc.health.v1. Both the overall status and
// IngestServiceName follow the MQTT session: SERVING only while connected.
type IOTServer struct {
	Server *grpc.Server
	health *health.Server
}

func NewIOTServer(opts ...grpc.ServerOption) *IOTServer {
	s := &IOTServer{health: health.NewServer()}

	opts = append(opts, grpc.ChainUnaryInterceptor(s.CreateLoggingInterceptor()))
	s.Server = grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s.Server, s.health)

	s.SetSessionState(mqtt.Disconnected)
	return s
}

// SetSessionState is meant to be registered with Session.OnStateChange.
func (s *IOTServer) SetSessionState(state mqtt.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state == mqtt.Connected {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(IngestServiceName, status)

	common.GetLoggerWith(common.LoggerNameGrpcServer).
		Debug("Health status updated", zap.Stringer("mqtt", state), zap.Stringer("status", status))
}

func (s *IOTServer) Serve(listener net.Listener) error {
	common.GetLoggerWith(common.LoggerNameGrpcServer).Info("start gRPC server on " + listener.Addr().String())
	return s.Server.Serve(listener)
}

// GracefulStop reports NOT_SERVING to watchers before draining connections.
func (s *IOTServer) GracefulStop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
}
