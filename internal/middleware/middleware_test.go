package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/gurkanbulca/taskdesk/pkg/auth"
)

func echoHandler(ctx context.Context, _ any) (any, error) {
	return GetClientInfoFromContext(ctx), nil
}

func TestAuthInterceptor(t *testing.T) {
	tm := auth.NewTokenManager("a", "r", time.Minute, time.Hour)
	pair, err := tm.GenerateTokenPair("u1", "alice", "ADMIN")
	require.NoError(t, err)

	interceptor := NewAuthInterceptor(tm, "/taskdesk.v1.AuthService/Login").Unary()

	tests := []struct {
		name     string
		method   string
		header   string
		wantCode codes.Code
		wantUser string
	}{
		{name: "public method", method: "/taskdesk.v1.AuthService/Login", wantCode: codes.OK},
		{name: "health is public", method: "/grpc.health.v1.Health/Check", wantCode: codes.OK},
		{name: "missing header", method: "/taskdesk.v1.TaskService/GetTask", wantCode: codes.Unauthenticated},
		{name: "bad scheme", method: "/taskdesk.v1.TaskService/GetTask", header: "Token x", wantCode: codes.Unauthenticated},
		{name: "refresh token rejected", method: "/taskdesk.v1.TaskService/GetTask", header: "Bearer " + pair.RefreshToken, wantCode: codes.Unauthenticated},
		{name: "valid", method: "/taskdesk.v1.TaskService/GetTask", header: "Bearer " + pair.AccessToken, wantCode: codes.OK, wantUser: "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := metadata.MD{}
			if tt.header != "" {
				md.Set("authorization", tt.header)
			}
			ctx := metadata.NewIncomingContext(context.Background(), md)

			resp, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, echoHandler)
			assert.Equal(t, tt.wantCode, status.Code(err))
			if tt.wantUser != "" {
				info := resp.(ClientInfo)
				assert.Equal(t, tt.wantUser, info.UserID)
				assert.Equal(t, "alice", info.Username)
				assert.Equal(t, "ADMIN", info.UserRole)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	guard := RequireRole([]string{"/svc/Delete"}, "ADMIN")
	info := func(m string) *grpc.UnaryServerInfo { return &grpc.UnaryServerInfo{FullMethod: m} }

	_, err := guard(context.Background(), nil, info("/svc/Delete"), echoHandler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	employee := WithUser(context.Background(), "u2", "bob", "EMPLOYEE")
	_, err = guard(employee, nil, info("/svc/Delete"), echoHandler)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = guard(employee, nil, info("/svc/Get"), echoHandler)
	assert.NoError(t, err)

	admin := WithUser(context.Background(), "u1", "alice", "ADMIN")
	_, err = guard(admin, nil, info("/svc/Delete"), echoHandler)
	assert.NoError(t, err)
}

func TestCurrentRole(t *testing.T) {
	stored := map[string]string{"u1": "EMPLOYEE"}
	lookup := func(_ context.Context, id string) (string, error) {
		role, ok := stored[id]
		if !ok {
			return "", errors.New("not found")
		}
		return role, nil
	}
	interceptor := CurrentRole(lookup)
	info := &grpc.UnaryServerInfo{FullMethod: "/svc/Delete"}

	tests := []struct {
		name     string
		ctx      context.Context
		wantCode codes.Code
		wantRole string
	}{
		{name: "demoted user gets stored role", ctx: WithUser(context.Background(), "u1", "alice", "ADMIN"), wantRole: "EMPLOYEE"},
		{name: "deleted user", ctx: WithUser(context.Background(), "gone", "eve", "ADMIN"), wantCode: codes.Unauthenticated},
		{name: "anonymous passes through", ctx: context.Background()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := interceptor(tt.ctx, nil, info, echoHandler)
			assert.Equal(t, tt.wantCode, status.Code(err))
			if err == nil {
				assert.Equal(t, tt.wantRole, resp.(ClientInfo).UserRole)
			}
		})
	}

	// chained ahead of the guard, a demoted admin is refused
	guard := RequireRole([]string{"/svc/Delete"}, "ADMIN")
	_, err := interceptor(WithUser(context.Background(), "u1", "alice", "ADMIN"), nil, info,
		func(ctx context.Context, req any) (any, error) { return guard(ctx, req, info, echoHandler) })
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestMetadataExtractor(t *testing.T) {
	md := metadata.Pairs("user-agent", "taskdesk-cli/1.0")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	resp, err := NewMetadataExtractorInterceptor().Unary()(ctx, nil, &grpc.UnaryServerInfo{}, echoHandler)
	require.NoError(t, err)
	assert.Equal(t, "taskdesk-cli/1.0", resp.(ClientInfo).UserAgent)
}

func TestInputValidator(t *testing.T) {
	type input struct {
		Username string  `json:"username" validate:"required,min=3,max=20"`
		Email    string  `json:"email" validate:"required,contact_email"`
		UserType string  `json:"userType" validate:"required,user_type"`
		Status   *string `json:"status" validate:"omitempty,task_status"`
	}
	iv, err := NewInputValidator()
	require.NoError(t, err)

	valid := input{Username: "alice", Email: "a@b.c", UserType: "employee"}
	assert.NoError(t, iv.Struct(valid))

	tests := []struct {
		name    string
		mutate  func(*input)
		wantMsg string
	}{
		{"short username", func(in *input) { in.Username = "al" }, "username must be at least 3"},
		{"long username", func(in *input) { in.Username = "abcdefghijklmnopqrstu" }, "username must be at most 20"},
		{"email without dot", func(in *input) { in.Email = "a@b" }, "email is not a valid"},
		{"unknown type", func(in *input) { in.UserType = "GUEST" }, "userType has unknown value"},
		{"unknown status", func(in *input) { s := "DONE"; in.Status = &s }, "status has unknown value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := iv.Struct(in)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
			assert.Contains(t, status.Convert(err).Message(), tt.wantMsg)
		})
	}
}
