package service

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gurkanbulca/taskdesk/internal/database"
	"github.com/gurkanbulca/taskdesk/internal/repository"
	"github.com/gurkanbulca/taskdesk/pkg/logger"
)

// Service names as registered on the server.
const (
	AuthServiceName = "taskdesk.v1.AuthService"
	UserServiceName = "taskdesk.v1.UserService"
	TaskServiceName = "taskdesk.v1.TaskService"
)

// FullMethod returns the gRPC path of a method.
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// PublicMethods may be called without a session token.
func PublicMethods() []string {
	return []string{
		FullMethod(AuthServiceName, "Login"),
		FullMethod(AuthServiceName, "RefreshToken"),
	}
}

// AdminMethods require the ADMIN role.
func AdminMethods() []string {
	return []string{
		FullMethod(UserServiceName, "CreateUser"),
		FullMethod(UserServiceName, "DeleteUser"),
		FullMethod(TaskServiceName, "CreateTask"),
		FullMethod(TaskServiceName, "ReassignTask"),
		FullMethod(TaskServiceName, "DeleteTask"),
	}
}

// Every message on the wire is a google.protobuf.Struct. unaryMethod decodes
// it into the typed input of fn.
func unaryMethod[S any, Req any](service, name string, fn func(S, context.Context, *Req) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := FullMethod(service, name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				var typed Req
				if err := decodeStruct(req.(*structpb.Struct), &typed); err != nil {
					return nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
				}
				return fn(srv.(S), ctx, &typed)
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, call)
		},
	}
}

func decodeStruct(in *structpb.Struct, out any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}

// toStatus maps store and repository errors onto gRPC codes.
func toStatus(ctx context.Context, err error, action string) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, repository.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, repository.ErrUsernameTaken), errors.Is(err, database.ErrDuplicateID):
		code = codes.AlreadyExists
	case errors.Is(err, repository.ErrInvalidCredentials):
		code = codes.Unauthenticated
	case errors.Is(err, repository.ErrInvalidTransition), errors.Is(err, database.ErrUnavailable):
		code = codes.FailedPrecondition
	case errors.Is(err, repository.ErrUnknownUser), errors.Is(err, repository.ErrInvalidInput):
		code = codes.InvalidArgument
	default:
		logger.FromContext(ctx).Error("request failed", "action", action, "error", err)
		return status.Errorf(codes.Internal, "failed to %s", action)
	}
	return status.Errorf(code, "%s: %v", action, err)
}
