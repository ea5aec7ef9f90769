package service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gurkanbulca/taskdesk/internal/middleware"
	"github.com/gurkanbulca/taskdesk/internal/models"
	"github.com/gurkanbulca/taskdesk/internal/repository"
	"github.com/gurkanbulca/taskdesk/pkg/security"
)

type UserService struct {
	users          *repository.UserRepository
	securityLogger *SecurityLogger
	validator      *middleware.InputValidator
}

func NewUserService(users *repository.UserRepository, securityLogger *SecurityLogger, validator *middleware.InputValidator) *UserService {
	return &UserService{users: users, securityLogger: securityLogger, validator: validator}
}

var UserServiceDesc = grpc.ServiceDesc{
	ServiceName: UserServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(UserServiceName, "CreateUser", (*UserService).CreateUser),
		unaryMethod(UserServiceName, "GetUser", (*UserService).GetUser),
		unaryMethod(UserServiceName, "ListUsers", (*UserService).ListUsers),
		unaryMethod(UserServiceName, "UpdateProfile", (*UserService).UpdateProfile),
		unaryMethod(UserServiceName, "DeleteUser", (*UserService).DeleteUser),
		unaryMethod(UserServiceName, "CountUsers", (*UserService).CountUsers),
	},
	Metadata: "taskdesk/v1/user.proto",
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=20"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"required,contact_email"`
	FullName string `json:"fullName" validate:"required"`
	UserType string `json:"userType" validate:"required,user_type"`
}

type UserIDRequest struct {
	ID string `json:"id" validate:"required"`
}

type ListUsersRequest struct {
	UserType *string `json:"userType" validate:"omitempty,user_type"`
}

type UpdateProfileRequest struct {
	ID       string `json:"id"` // defaults to the caller
	Email    string `json:"email" validate:"required,contact_email"`
	FullName string `json:"fullName" validate:"required"`
}

// CreateUser registers a new account. Admin only.
func (s *UserService) CreateUser(ctx context.Context, req *CreateUserRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	userType := models.ParseUserType(req.UserType).Value
	user, err := s.users.Insert(s.users.NewUser(userType, req.Username, req.Password, req.Email, req.FullName))
	if err != nil {
		return nil, toStatus(ctx, err, "create user")
	}
	s.securityLogger.LogCurrentUserFromContext(ctx, security.EventTypeUserCreated, "created user "+user.ID)

	return newStruct(map[string]any{"user": userToMap(user)})
}

func (s *UserService) GetUser(ctx context.Context, req *UserIDRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(req.ID)
	if err != nil {
		return nil, toStatus(ctx, err, "get user")
	}
	return newStruct(map[string]any{"user": userToMap(user)})
}

// ListUsers returns every user, or only those of userType.
func (s *UserService) ListUsers(ctx context.Context, req *ListUsersRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	var users []models.User
	if req.UserType != nil {
		users = s.users.ListByType(models.ParseUserType(*req.UserType).Value)
	} else {
		users = s.users.List()
	}
	return newStruct(map[string]any{
		"users": usersToList(users),
		"total": len(users),
	})
}

// UpdateProfile changes email and full name. Employees may only edit
// themselves.
func (s *UserService) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id := req.ID
	if id == "" {
		id = c.ID
	}
	if id != c.ID && !c.Admin {
		s.securityLogger.LogPermissionDenied(ctx, "update profile of "+id)
		return nil, status.Error(codes.PermissionDenied, "cannot update another user's profile")
	}

	user, err := s.users.UpdateProfile(id, req.Email, req.FullName)
	if err != nil {
		return nil, toStatus(ctx, err, "update profile")
	}
	return newStruct(map[string]any{"user": userToMap(user)})
}

// DeleteUser removes an account. Admin only; admins cannot delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, req *UserIDRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == c.ID {
		return nil, status.Error(codes.FailedPrecondition, "cannot delete the current user")
	}

	if err := s.users.Delete(req.ID); err != nil {
		return nil, toStatus(ctx, err, "delete user")
	}
	s.securityLogger.LogCurrentUserFromContext(ctx, security.EventTypeUserDeleted, "deleted user "+req.ID)
	return newStruct(map[string]any{"deleted": true})
}

func (s *UserService) CountUsers(_ context.Context, _ *Empty) (*structpb.Struct, error) {
	return newStruct(map[string]any{
		"total":     s.users.Count(),
		"admins":    s.users.CountByType(models.UserTypeAdmin),
		"employees": s.users.CountByType(models.UserTypeEmployee),
	})
}
