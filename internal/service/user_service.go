package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"card-admin/internal/model"
	"card-admin/internal/security"
	"card-admin/internal/util"
	"card-admin/pkg/apierror"
)

const (
	AuditPasswordChange = "user.password_change"
	AuditProfileUpdate  = "user.profile_update"
	AuditFlagsUpdate    = "user.flags_update"
	AuditUserDelete     = "user.delete"
)

type userFlags struct {
	IsActive   bool `json:"is_active"`
	IsVerified bool `json:"is_verified"`
	IsAdmin    bool `json:"is_admin"`
}

func flagsOf(u model.User) userFlags {
	return userFlags{IsActive: u.IsActive, IsVerified: u.IsVerified, IsAdmin: u.IsAdmin}
}

type UserService struct {
	users  UserStore
	hasher *security.PasswordHasher
	audit  *AuditService
	now    func() time.Time
}

func NewUserService(users UserStore, hasher *security.PasswordHasher, audit *AuditService) *UserService {
	return &UserService{users: users, hasher: hasher, audit: audit, now: time.Now}
}

func (s *UserService) Me(ctx context.Context, userID string) (model.Profile, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	return user.Profile(), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest) (model.Profile, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	before := user.Profile()

	if req.Nickname != nil {
		user.Nickname = util.CleanText(*req.Nickname, false)
		if err := validateNickname(user.Nickname); err != nil {
			return model.Profile{}, err
		}
	}
	if req.Locale != nil {
		user.Locale = strings.TrimSpace(*req.Locale)
		if err := validateLocale(user.Locale); err != nil {
			return model.Profile{}, err
		}
	}
	if req.Timezone != nil {
		user.Timezone = strings.TrimSpace(*req.Timezone)
		if err := validateTimezone(user.Timezone); err != nil {
			return model.Profile{}, err
		}
	}
	if req.Currency != nil {
		user.Currency = normalizeCurrency(*req.Currency)
		if err := validateCurrency(user.Currency, "currency"); err != nil {
			return model.Profile{}, err
		}
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return model.Profile{}, s.notFound(err, userID)
	}

	s.audit.Log(ctx, AuditProfileUpdate, AuditSuccess, "user:"+user.ID, before, user.Profile(), "")
	return user.Profile(), nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID string, req model.ChangePasswordRequest) error {
	if req.CurrentPassword == "" {
		return apierror.Validation("current_password is required", "current_password")
	}
	if err := s.hasher.CheckPolicy(req.NewPassword); err != nil {
		return apierror.Validation(err.Error(), "new_password")
	}
	if req.NewPassword == req.CurrentPassword {
		return apierror.Validation("new password must differ from the current one", "new_password")
	}

	user, err := s.find(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Compare(user.PasswordHash, req.CurrentPassword) {
		s.audit.Log(ctx, AuditPasswordChange, AuditFailure, "user:"+user.ID, nil, nil, "current password mismatch")
		return apierror.Unauthorized("current password is incorrect")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return s.notFound(err, userID)
	}

	s.audit.Log(ctx, AuditPasswordChange, AuditSuccess, "user:"+user.ID, nil, nil, "")
	return nil
}

func (s *UserService) List(ctx context.Context, actorID string, query model.UserQuery) ([]model.Profile, model.Meta, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, model.Meta{}, err
	}

	query.Page, query.Limit = normalizePage(query.Page, query.Limit, 20, 100)
	query.Search = strings.TrimSpace(query.Search)

	users, total, err := s.users.List(ctx, query)
	if err != nil {
		return nil, model.Meta{}, err
	}

	profiles := make([]model.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return profiles, model.NewMeta(query.Page, query.Limit, total), nil
}

func (s *UserService) Get(ctx context.Context, actorID string, userID string) (model.Profile, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return model.Profile{}, err
	}
	return s.Me(ctx, userID)
}

func (s *UserService) UpdateFlags(ctx context.Context, actorID string, userID string, req model.UpdateFlagsRequest) (model.Profile, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return model.Profile{}, err
	}
	if req.IsActive == nil && req.IsVerified == nil && req.IsAdmin == nil {
		return model.Profile{}, apierror.Validation("at least one flag is required", "")
	}

	user, err := s.find(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	before := flagsOf(user)

	if req.IsActive != nil {
		if user.ID == actorID && !*req.IsActive {
			return model.Profile{}, apierror.Validation("admins cannot deactivate themselves", "is_active")
		}
		user.IsActive = *req.IsActive
	}
	if req.IsVerified != nil {
		user.IsVerified = *req.IsVerified
	}
	if req.IsAdmin != nil {
		if user.ID == actorID && !*req.IsAdmin {
			return model.Profile{}, apierror.Validation("admins cannot remove their own admin flag", "is_admin")
		}
		user.IsAdmin = *req.IsAdmin
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.users.UpdateFlags(ctx, user); err != nil {
		return model.Profile{}, s.notFound(err, userID)
	}

	s.audit.Log(ctx, AuditFlagsUpdate, AuditSuccess, "user:"+user.ID, before, flagsOf(user), "")
	return user.Profile(), nil
}

// Delete is logical; the row stays for history and the name becomes free.
func (s *UserService) Delete(ctx context.Context, actorID string, userID string) error {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if userID == actorID {
		return apierror.Validation("admins cannot delete themselves", "id")
	}

	user, err := s.find(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.users.SoftDelete(ctx, user.ID, s.now().UTC()); err != nil {
		return s.notFound(err, userID)
	}

	s.audit.Log(ctx, AuditUserDelete, AuditSuccess, "user:"+user.ID, user.Profile(), nil, "")
	return nil
}

// RequireAdmin fails unless actorID names a live admin account.
func (s *UserService) RequireAdmin(ctx context.Context, actorID string) error {
	_, err := s.requireAdmin(ctx, actorID)
	return err
}

// requireAdmin re-reads the actor so a revoked admin flag takes effect
// before the token expires.
func (s *UserService) requireAdmin(ctx context.Context, actorID string) (model.User, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.Unauthorized("authentication required")
	}
	if err != nil {
		return model.User{}, err
	}
	if !actor.CanAuthenticate() {
		return model.User{}, apierror.Unauthorized("authentication required")
	}
	if !actor.IsAdmin {
		return model.User{}, apierror.Forbidden("admin privileges required")
	}
	return actor, nil
}

func (s *UserService) find(ctx context.Context, userID string) (model.User, error) {
	if !validID(userID) {
		return model.User{}, apierror.NotFound("user not found", userID)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.User{}, s.notFound(err, userID)
	}
	return user, nil
}

func (s *UserService) notFound(err error, userID string) error {
	if errors.Is(err, model.ErrUserNotFound) {
		return apierror.NotFound("user not found", userID)
	}
	return err
}
