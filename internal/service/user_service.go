package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/frontdesk-api/internal/models"
	"github.com/noah-isme/frontdesk-api/internal/repository"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string, at time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for creating staff accounts.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN RECEPTIONIST"`
	Active   bool            `json:"active"`
	Password string          `json:"password" validate:"required,min=6"`
}

// UpdateUserRequest payload for updating staff accounts.
type UpdateUserRequest struct {
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN RECEPTIONIST"`
	Active   *bool           `json:"active"`
}

// UserService manages the staff accounts that record visitors and resolve their requests.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		repo:      repo,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns staff accounts ordered by name.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a staff account by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.load(ctx, id)
}

// Create adds a staff account. Only a superadmin may create another superadmin.
func (s *UserService) Create(ctx context.Context, actor *models.JWTClaims, req CreateUserRequest) (*models.User, error) {
	if err := requireUserManager(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	if err := checkRoleGrant(actor, req.Role); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Active:       req.Active,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, internalError(err, "failed to create user")
	}

	s.audit(ctx, actor, models.AuditActionUserCreate, user.ID, nil,
		map[string]interface{}{"email": user.Email, "role": user.Role, "active": user.Active})
	return user, nil
}

// Update changes name, role and active flag. Staff cannot change their own role or
// deactivate themselves, and only a superadmin may grant or revoke the superadmin role.
func (s *UserService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateUserRequest) (*models.User, error) {
	if err := requireUserManager(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	active := user.Active
	if req.Active != nil {
		active = *req.Active
	}
	if id == actor.UserID && (req.Role != user.Role || !active) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cannot change your own role or deactivate yourself")
	}
	if user.Role == models.RoleSuperAdmin || req.Role == models.RoleSuperAdmin {
		if err := checkRoleGrant(actor, models.RoleSuperAdmin); err != nil {
			return nil, err
		}
	}

	before := map[string]interface{}{"full_name": user.FullName, "role": user.Role, "active": user.Active}
	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role
	user.Active = active
	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to update user")
	}

	s.audit(ctx, actor, models.AuditActionUserUpdate, user.ID, before,
		map[string]interface{}{"full_name": user.FullName, "role": user.Role, "active": user.Active})
	return user, nil
}

// Delete deactivates a staff account and ends its sessions. Accounts stay in place
// because visitor records and requests keep pointing at them.
func (s *UserService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if err := requireUserManager(actor); err != nil {
		return err
	}
	if id == actor.UserID {
		return appErrors.Clone(appErrors.ErrConflict, "cannot deactivate your own account")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleSuperAdmin {
		if err := checkRoleGrant(actor, models.RoleSuperAdmin); err != nil {
			return err
		}
	}

	if err := s.repo.Deactivate(ctx, id, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return internalError(err, "failed to deactivate user")
	}

	s.audit(ctx, actor, models.AuditActionUserDelete, user.ID,
		map[string]interface{}{"active": user.Active}, map[string]interface{}{"active": false})
	return nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to load user")
	}
	return user, nil
}

func (s *UserService) audit(ctx context.Context, actor *models.JWTClaims, action, userID string, before, after interface{}) {
	emitAudit(ctx, s.repo, s.logger, "user-service", &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   models.AuditResourceUser,
		ResourceID: &userID,
		OldValues:  marshalAudit(before),
		NewValues:  marshalAudit(after),
	})
}

func requireUserManager(actor *models.JWTClaims) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.Role.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can manage staff accounts")
	}
	return nil
}

func checkRoleGrant(actor *models.JWTClaims, role models.UserRole) error {
	if role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only a superadmin can manage superadmin accounts")
	}
	return nil
}
