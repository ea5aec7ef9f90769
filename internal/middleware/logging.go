package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/gurkanbulca/taskdesk/pkg/logger"
)

// Logging logs every unary call with its duration and status code, and
// hands a request-scoped logger to the handler through the context.
func Logging(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		client := GetClientInfoFromContext(ctx)
		reqLog := log.With("method", info.FullMethod, "ip", client.IPAddress)
		if client.UserID != "" {
			reqLog = reqLog.With("user_id", client.UserID)
		}

		resp, err := handler(logger.ContextWithLogger(ctx, reqLog), req)

		code := status.Code(err)
		if err != nil {
			reqLog.Warn("request failed", "code", code.String(), "duration", time.Since(start), "error", err)
		} else {
			reqLog.Info("request completed", "code", code.String(), "duration", time.Since(start))
		}
		return resp, err
	}
}
