package service

import (
	"context"
	"errors"
	"log/slog"
	"robocomp/internal/app/policy"
	"robocomp/internal/common"
	"robocomp/internal/common/security"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"strings"
)

const userSearchLimit = 10

type UserService struct {
	users    repository.UserRepository
	activity ActivityLogger
}

func NewUserService(users repository.UserRepository, activity ActivityLogger) *UserService {
	return &UserService{users: users, activity: activity}
}

type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty"`
	Image *string `json:"image,omitempty"`
}

type SetUserStatusRequest struct {
	Status string `json:"status"`
}

type SetUserRoleRequest struct {
	Role string `json:"role"`
}

type UserPage struct {
	Users []model.User `json:"users"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// EnsureUser returns the stored user for verified token claims, provisioning
// one on first sight. The stored role always wins over the claimed one.
func (s *UserService) EnsureUser(ctx context.Context, claims security.Claims) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return nil, common.ErrUnauthorized
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, common.Errorf("failed to load user %s: %w", email, err)
	}

	role := claims.Role
	if !model.IsValidRole(role) || role == model.RoleAdmin {
		// Admins are promoted explicitly, never self-asserted.
		role = model.RoleParticipant
	}
	user = &model.User{
		Email:  email,
		Name:   strings.TrimSpace(claims.Name),
		Role:   role,
		Status: model.InitialStatus(role),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			// Provisioned concurrently by another request.
			return s.users.FindByEmail(ctx, email)
		}
		return nil, common.Errorf("failed to provision user %s: %w", email, err)
	}
	slog.InfoContext(ctx, "user provisioned", "email", email, "role", role, "status", user.Status)
	return user, nil
}

func (s *UserService) Me(ctx context.Context, actor *model.User) (*model.User, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	return s.users.FindByEmail(ctx, actor.Email)
}

func (s *UserService) UpdateProfile(ctx context.Context, actor *model.User, req UpdateProfileRequest) (*model.User, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	current, err := s.users.FindByEmail(ctx, actor.Email)
	if err != nil {
		return nil, err
	}
	name, image := current.Name, current.Image
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, common.Errorf("name must not be empty: %w", common.ErrBadRequest)
		}
	}
	if req.Image != nil {
		image = req.Image
		if *image == "" {
			image = nil
		}
	}
	if err := s.users.UpdateProfile(ctx, actor.Email, name, image); err != nil {
		return nil, common.Errorf("failed to update profile: %w", err)
	}
	return s.users.FindByEmail(ctx, actor.Email)
}

func (s *UserService) List(ctx context.Context, actor *model.User, page, limit int) (*UserPage, error) {
	if err := policy.Authorize(actor, policy.ManageUsers, policy.Resource{}); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	users, total, err := s.users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, common.Errorf("failed to list users: %w", err)
	}
	return &UserPage{Users: users, Total: total, Page: page, Limit: limit}, nil
}

// SetStatus approves or rejects an organizer account.
func (s *UserService) SetStatus(ctx context.Context, actor *model.User, email, status string) error {
	if err := policy.Authorize(actor, policy.ManageUsers, policy.Resource{}); err != nil {
		return err
	}
	if status != model.UserStatusApproved && status != model.UserStatusRejected {
		return common.Errorf("status must be approved or rejected: %w", common.ErrBadRequest)
	}
	target, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if target.Role != model.RoleOrganizer {
		return common.Errorf("only organizer accounts require approval: %w", common.ErrBadRequest)
	}
	if err := s.users.UpdateStatus(ctx, target.Email, status); err != nil {
		return common.Errorf("failed to update user status: %w", err)
	}
	slog.InfoContext(ctx, "user status changed", "email", target.Email, "status", status, "by", actor.Email)
	s.activity.Log(ctx, actor, model.ActivityUserStatus, target.Email+" -> "+status)
	return nil
}

func (s *UserService) SetRole(ctx context.Context, actor *model.User, email, role string) error {
	if err := policy.Authorize(actor, policy.ManageUsers, policy.Resource{}); err != nil {
		return err
	}
	if err := s.AssignRole(ctx, email, role); err != nil {
		return err
	}
	s.activity.Log(ctx, actor, model.ActivityUserRole, strings.ToLower(strings.TrimSpace(email))+" -> "+role)
	return nil
}

// Search finds up to ten other users whose name or email contains query,
// for picking teammates and judges.
func (s *UserService) Search(ctx context.Context, actor *model.User, query string) ([]model.User, error) {
	if actor == nil {
		return nil, common.ErrUnauthorized
	}
	users, err := s.users.Search(ctx, strings.TrimSpace(query), actor.Email, userSearchLimit)
	if err != nil {
		return nil, common.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

// AssignRole changes a user's role without an authorization check. It backs
// SetRole and the operator CLI.
func (s *UserService) AssignRole(ctx context.Context, email, role string) error {
	if !model.IsValidRole(role) {
		return common.Errorf("unknown role %q: %w", role, common.ErrBadRequest)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.users.UpdateRole(ctx, email, role); err != nil {
		return err
	}
	slog.InfoContext(ctx, "user role changed", "email", email, "role", role)
	return nil
}
