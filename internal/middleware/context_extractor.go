// internal/middleware/context_extractor.go
package middleware

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// ContextKey types request-scoped values set by the interceptors.
type ContextKey string

const (
	ContextKeyIPAddress ContextKey = "ip_address"
	ContextKeyUserAgent ContextKey = "user_agent"
	ContextKeyUserID    ContextKey = "user_id"
	ContextKeyUsername  ContextKey = "username"
	ContextKeyUserRole  ContextKey = "user_role"
)

// MetadataExtractorInterceptor extracts client metadata and adds it to context
type MetadataExtractorInterceptor struct{}

func NewMetadataExtractorInterceptor() *MetadataExtractorInterceptor {
	return &MetadataExtractorInterceptor{}
}

func (m *MetadataExtractorInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(enrichContext(ctx), req)
	}
}

func (m *MetadataExtractorInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &wrappedServerStream{ServerStream: stream, ctx: enrichContext(stream.Context())})
	}
}

func enrichContext(ctx context.Context) context.Context {
	if ip := extractIPAddress(ctx); ip != "" {
		ctx = context.WithValue(ctx, ContextKeyIPAddress, ip)
	}
	if ua := extractUserAgent(ctx); ua != "" {
		ctx = context.WithValue(ctx, ContextKeyUserAgent, ua)
	}
	return ctx
}

func extractIPAddress(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	if tcpAddr, ok := p.Addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.String()
	}
	addr := p.Addr.String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func extractUserAgent(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, header := range []string{"user-agent", "grpc-user-agent", "x-user-agent"} {
		if values := md.Get(header); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// wrappedServerStream swaps the context of a stream.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *wrappedServerStream) Context() context.Context {
	return s.ctx
}

func stringFromContext(ctx context.Context, key ContextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id := stringFromContext(ctx, ContextKeyUserID)
	return id, id != ""
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	role := stringFromContext(ctx, ContextKeyUserRole)
	return role, role != ""
}

// ClientInfo collects everything the interceptors know about the caller.
type ClientInfo struct {
	IPAddress string
	UserAgent string
	UserID    string
	Username  string
	UserRole  string
}

func GetClientInfoFromContext(ctx context.Context) ClientInfo {
	return ClientInfo{
		IPAddress: stringFromContext(ctx, ContextKeyIPAddress),
		UserAgent: stringFromContext(ctx, ContextKeyUserAgent),
		UserID:    stringFromContext(ctx, ContextKeyUserID),
		Username:  stringFromContext(ctx, ContextKeyUsername),
		UserRole:  stringFromContext(ctx, ContextKeyUserRole),
	}
}

// WithUser stores the authenticated identity in ctx.
func WithUser(ctx context.Context, userID, username, role string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, ContextKeyUsername, username)
	return context.WithValue(ctx, ContextKeyUserRole, role)
}
