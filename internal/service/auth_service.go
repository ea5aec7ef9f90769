// internal/service/auth_service.go
package service

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gurkanbulca/taskdesk/internal/middleware"
	"github.com/gurkanbulca/taskdesk/internal/models"
	"github.com/gurkanbulca/taskdesk/internal/repository"
	"github.com/gurkanbulca/taskdesk/pkg/auth"
	"github.com/gurkanbulca/taskdesk/pkg/security"
)

type AuthService struct {
	users          *repository.UserRepository
	tokenManager   *auth.TokenManager
	securityLogger *SecurityLogger
	validator      *middleware.InputValidator
}

func NewAuthService(
	users *repository.UserRepository,
	tokenManager *auth.TokenManager,
	securityLogger *SecurityLogger,
	validator *middleware.InputValidator,
) *AuthService {
	return &AuthService{
		users:          users,
		tokenManager:   tokenManager,
		securityLogger: securityLogger,
		validator:      validator,
	}
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(AuthServiceName, "Login", (*AuthService).Login),
		unaryMethod(AuthServiceName, "RefreshToken", (*AuthService).RefreshToken),
		unaryMethod(AuthServiceName, "ChangePassword", (*AuthService).ChangePassword),
		unaryMethod(AuthServiceName, "Me", (*AuthService).Me),
	},
	Metadata: "taskdesk/v1/auth.proto",
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type Empty struct{}

// Login authenticates a user and returns a token pair.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.users.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			s.securityLogger.LogLoginFailed(ctx, req.Username)
			return nil, status.Error(codes.Unauthenticated, "invalid username or password")
		}
		return nil, toStatus(ctx, err, "log in")
	}

	pair, err := s.tokenManager.GenerateTokenPair(user.ID, user.Username, string(user.UserType))
	if err != nil {
		return nil, toStatus(ctx, err, "generate tokens")
	}
	s.securityLogger.LogLoginSuccess(ctx, user.ID)

	return newStruct(map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
		"user":         userToMap(user),
	})
}

// RefreshToken exchanges a refresh token for a new access token. The user
// must still exist.
func (s *AuthService) RefreshToken(ctx context.Context, req *RefreshTokenRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	claims, err := s.tokenManager.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}
	if _, err := s.users.GetByID(claims.UserID); err != nil {
		return nil, status.Error(codes.Unauthenticated, "user no longer exists")
	}

	accessToken, expiresIn, err := s.tokenManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}
	s.securityLogger.LogFromContext(ctx, claims.UserID, security.EventTypeTokenRefreshed, "access token refreshed")

	return newStruct(map[string]any{
		"accessToken": accessToken,
		"expiresIn":   expiresIn,
	})
}

// ChangePassword changes the password of the calling user.
func (s *AuthService) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.users.ChangePassword(c.ID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			return nil, status.Error(codes.PermissionDenied, "current password is incorrect")
		}
		return nil, toStatus(ctx, err, "change password")
	}
	s.securityLogger.LogPasswordChanged(ctx, c.ID)

	return newStruct(map[string]any{"changed": true})
}

// Me returns the calling user.
func (s *AuthService) Me(ctx context.Context, _ *Empty) (*structpb.Struct, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(c.ID)
	if err != nil {
		return nil, toStatus(ctx, err, "get current user")
	}
	return newStruct(map[string]any{
		"user":    userToMap(user),
		"isAdmin": user.UserType == models.UserTypeAdmin,
	})
}
