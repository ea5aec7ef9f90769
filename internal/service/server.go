package service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gurkanbulca/taskdesk/internal/middleware"
	"github.com/gurkanbulca/taskdesk/internal/models"
	"github.com/gurkanbulca/taskdesk/internal/repository"
	"github.com/gurkanbulca/taskdesk/pkg/auth"
	"github.com/gurkanbulca/taskdesk/pkg/logger"
)

// Dependencies wires the services of one server.
type Dependencies struct {
	Users        *repository.UserRepository
	Tasks        *repository.TaskRepository
	TokenManager *auth.TokenManager
	Logger       logger.Logger
}

// NewGRPCServer builds a server with the interceptor chain, the taskdesk
// services and the health service registered. The health server starts in
// NOT_SERVING until the caller marks it ready.
func NewGRPCServer(deps Dependencies, opts ...grpc.ServerOption) (*grpc.Server, *health.Server, error) {
	validator, err := middleware.NewInputValidator()
	if err != nil {
		return nil, nil, err
	}
	securityLogger := NewSecurityLogger(deps.Logger)

	metadataExtractor := middleware.NewMetadataExtractorInterceptor()
	authInterceptor := middleware.NewAuthInterceptor(deps.TokenManager, PublicMethods()...)
	storedRole := func(_ context.Context, userID string) (string, error) {
		user, err := deps.Users.GetByID(userID)
		if err != nil {
			return "", err
		}
		return string(user.UserType), nil
	}

	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			metadataExtractor.Unary(),
			authInterceptor.Unary(),
			middleware.CurrentRole(storedRole),
			middleware.RequireRole(AdminMethods(), string(models.UserTypeAdmin)),
			middleware.Logging(deps.Logger.With("component", "grpc")),
		),
		grpc.ChainStreamInterceptor(
			metadataExtractor.Stream(),
			authInterceptor.Stream(),
		),
	)
	server := grpc.NewServer(opts...)

	server.RegisterService(&AuthServiceDesc, NewAuthService(deps.Users, deps.TokenManager, securityLogger, validator))
	server.RegisterService(&UserServiceDesc, NewUserService(deps.Users, securityLogger, validator))
	server.RegisterService(&TaskServiceDesc, NewTaskService(deps.Tasks, securityLogger, validator))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	SetServing(healthServer, false)

	return server, healthServer, nil
}

// SetServing flips the health status of every taskdesk service.
func SetServing(h *health.Server, serving bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	for _, name := range []string{"", AuthServiceName, UserServiceName, TaskServiceName} {
		h.SetServingStatus(name, st)
	}
}
