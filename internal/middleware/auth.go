// internal/middleware/auth.go
package middleware

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/gurkanbulca/taskdesk/pkg/auth"
)

// AuthInterceptor provides authentication middleware
type AuthInterceptor struct {
	tokenManager  *auth.TokenManager
	publicMethods map[string]bool
}

// NewAuthInterceptor creates an interceptor that lets publicMethods through
// without a token. Health checks are always public.
func NewAuthInterceptor(tokenManager *auth.TokenManager, publicMethods ...string) *AuthInterceptor {
	public := map[string]bool{
		"/grpc.health.v1.Health/Check": true,
		"/grpc.health.v1.Health/Watch": true,
	}
	for _, m := range publicMethods {
		public[m] = true
	}
	return &AuthInterceptor{
		tokenManager:  tokenManager,
		publicMethods: public,
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if a.publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		newCtx, err := a.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(newCtx, req)
	}
}

func (a *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if a.publicMethods[info.FullMethod] {
			return handler(srv, stream)
		}
		newCtx, err := a.authenticate(stream.Context())
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: stream, ctx: newCtx})
	}
}

// authenticate extracts and validates the JWT token from metadata
func (a *AuthInterceptor) authenticate(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing authorization header")
	}
	token, err := auth.ExtractTokenFromHeader(authHeaders[0])
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	claims, err := a.tokenManager.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, status.Error(codes.Unauthenticated, "token has expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	return WithUser(ctx, claims.UserID, claims.Username, claims.Role), nil
}

// RoleLookup returns the stored role of a user, or an error when the user
// no longer exists.
type RoleLookup func(ctx context.Context, userID string) (string, error)

// CurrentRole replaces the role carried by the token with the stored one, so
// a deleted or demoted user loses access before the token expires. Calls
// without an authenticated user pass through.
func CurrentRole(lookup RoleLookup) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		userID, ok := GetUserIDFromContext(ctx)
		if !ok {
			return handler(ctx, req)
		}
		role, err := lookup(ctx, userID)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "user no longer exists")
		}
		client := GetClientInfoFromContext(ctx)
		return handler(WithUser(ctx, userID, client.Username, role), req)
	}
}

// RequireRole guards the listed methods: callers whose role is not in roles
// get PermissionDenied. Other methods pass through untouched.
func RequireRole(methods []string, roles ...string) grpc.UnaryServerInterceptor {
	guarded := make(map[string]bool, len(methods))
	for _, m := range methods {
		guarded[m] = true
	}
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !guarded[info.FullMethod] {
			return handler(ctx, req)
		}
		userRole, ok := GetUserRoleFromContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "user not authenticated")
		}
		if !allowed[userRole] {
			return nil, status.Error(codes.PermissionDenied, "insufficient permissions")
		}
		return handler(ctx, req)
	}
}
