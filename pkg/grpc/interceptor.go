package grpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
)

// CreateLoggingInterceptor logs every unary call and turns handler panics
// into codes.Internal.
func (s *IOTServer) CreateLoggingInterceptor() grpc.UnaryServerInterceptor {
	logger := common.GetLoggerWith(common.LoggerNameGrpcServer)

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				logger.Error("gRPC handler panicked", zap.String("method", info.FullMethod), zap.Any("panic", p))
				err = status.Error(codes.Internal, fmt.Sprintf("internal error in %s", info.FullMethod))
			}
			logger.Debug("gRPC call",
				zap.String("method", info.FullMethod),
				zap.Stringer("code", status.Code(err)),
				zap.Duration("elapsed", time.Since(start)),
			)
		}()

		return handler(ctx, req)
	}
}
