package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"card-admin/internal/model"
	"card-admin/internal/ratelimit"
	"card-admin/internal/security"
	"card-admin/internal/util"
	"card-admin/pkg/apierror"
)

const (
	AuditRegister = "auth.register"
	AuditLogin    = "auth.login"
	AuditRefresh  = "auth.refresh"
)

type AuthService struct {
	users         UserStore
	hasher        *security.PasswordHasher
	tokens        *security.TokenIssuer
	rotateRefresh bool
	limiter       ratelimit.Limiter
	audit         *AuditService
	events        EventRecorder
	now           func() time.Time
}

type AuthOptions struct {
	// RotateRefresh mints a new refresh token on every refresh instead of
	// handing back the presented one.
	RotateRefresh bool
	// Limiter throttles login attempts; nil disables throttling.
	Limiter ratelimit.Limiter
	Audit   *AuditService
	Events  EventRecorder
}

func NewAuthService(users UserStore, hasher *security.PasswordHasher, tokens *security.TokenIssuer, opts AuthOptions) *AuthService {
	return &AuthService{
		users:         users,
		hasher:        hasher,
		tokens:        tokens,
		rotateRefresh: opts.RotateRefresh,
		limiter:       opts.Limiter,
		audit:         opts.Audit,
		events:        opts.Events,
		now:           time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.RegisteredUser, error) {
	user, err := s.newUser(req)
	if err != nil {
		s.record("register", AuditFailure)
		return model.RegisteredUser{}, err
	}

	if err := s.checkAvailable(ctx, user); err != nil {
		s.record("register", AuditFailure)
		s.audit.Log(ctx, AuditRegister, AuditFailure, "user:"+user.Username, nil, nil, err.Error())
		return model.RegisteredUser{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.RegisteredUser{}, err
	}
	user.PasswordHash = hash

	// The pre-check above races with concurrent registrations; the unique
	// index decides.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			conflict := apierror.Conflict("username or email already exists", user.Username)
			s.record("register", AuditFailure)
			s.audit.Log(ctx, AuditRegister, AuditFailure, "user:"+user.Username, nil, nil, conflict.Error())
			return model.RegisteredUser{}, conflict
		}
		return model.RegisteredUser{}, err
	}

	tokens, err := s.tokens.IssuePair(user)
	if err != nil {
		return model.RegisteredUser{}, err
	}

	s.record("register", AuditSuccess)
	s.audit.LogAs(ctx, s.actorFor(ctx, user), AuditRegister, AuditSuccess, "user:"+user.ID, nil, user.Profile(), "")

	return model.RegisteredUser{Profile: user.Profile(), TokenPair: tokens}, nil
}

// Authenticate verifies credentials. Unknown, deleted and inactive accounts
// fail exactly like a wrong password.
func (s *AuthService) Authenticate(ctx context.Context, username string, password string) (model.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.CompareDummy(password)
		return model.User{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}

	if !s.hasher.Compare(user.PasswordHash, password) || !user.CanAuthenticate() {
		return model.User{}, model.ErrInvalidCredentials
	}

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return model.LoginResult{}, apierror.Validation("username is required", "username")
	}
	if req.Password == "" {
		return model.LoginResult{}, apierror.Validation("password is required", "password")
	}

	if err := s.throttle(ctx, username); err != nil {
		s.record("login", "throttled")
		s.audit.Log(ctx, AuditLogin, AuditFailure, "user:"+username, nil, nil, "too many attempts")
		return model.LoginResult{}, err
	}

	user, err := s.Authenticate(ctx, username, req.Password)
	if errors.Is(err, model.ErrInvalidCredentials) {
		s.record("login", AuditFailure)
		s.audit.Log(ctx, AuditLogin, AuditFailure, "user:"+username, nil, nil, "invalid credentials")
		return model.LoginResult{}, apierror.Unauthorized("invalid username or password")
	}
	if err != nil {
		return model.LoginResult{}, err
	}

	tokens, err := s.tokens.IssuePair(user)
	if err != nil {
		return model.LoginResult{}, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		slog.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}

	s.record("login", AuditSuccess)
	s.audit.LogAs(ctx, s.actorFor(ctx, user), AuditLogin, AuditSuccess, "user:"+user.ID, nil, nil, "")

	return model.LoginResult{ID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin, TokenPair: tokens}, nil
}

// Refresh mints a new access token. The user is reloaded so that deleted or
// deactivated accounts cannot keep renewing.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return model.TokenPair{}, apierror.Validation("refresh_token is required", "refresh_token")
	}

	claims, err := s.tokens.Parse(refreshToken, security.RefreshToken)
	if err != nil {
		s.record("refresh", AuditFailure)
		s.audit.Log(ctx, AuditRefresh, AuditFailure, "", nil, nil, err.Error())
		return model.TokenPair{}, apierror.Unauthorized("invalid or expired refresh token")
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if errors.Is(err, model.ErrUserNotFound) || (err == nil && !user.CanAuthenticate()) {
		s.record("refresh", AuditFailure)
		s.audit.Log(ctx, AuditRefresh, AuditFailure, "user:"+claims.Subject, nil, nil, "account unavailable")
		return model.TokenPair{}, apierror.Unauthorized("invalid or expired refresh token")
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	tokens, err := s.tokens.Renew(user, refreshToken, s.rotateRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}

	s.record("refresh", AuditSuccess)
	return tokens, nil
}

// ValidateToken verifies a bearer token of the expected type.
func (s *AuthService) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	claims, err := s.tokens.Parse(tokenString, security.TokenType(expectedType))
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, model.ErrTokenExpired
		}
		return nil, model.ErrInvalidToken
	}
	return claims.AuthClaims(), nil
}

func (s *AuthService) newUser(req model.RegisterRequest) (model.User, error) {
	now := s.now().UTC()
	user := model.User{
		ID:         uuid.NewString(),
		Username:   strings.TrimSpace(req.Username),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Nickname:   util.CleanText(req.Nickname, false),
		Locale:     strings.TrimSpace(req.Locale),
		Timezone:   strings.TrimSpace(req.Timezone),
		Currency:   normalizeCurrency(req.Currency),
		IsActive:   true,
		IsVerified: false,
		IsAdmin:    false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if user.Locale == "" {
		user.Locale = defaultLocale
	}
	if user.Timezone == "" {
		user.Timezone = defaultTimezone
	}
	if user.Currency == "" {
		user.Currency = defaultCurrency
	}

	if err := validateUsername(user.Username); err != nil {
		return model.User{}, err
	}
	if err := validateEmail(user.Email); err != nil {
		return model.User{}, err
	}
	if err := s.hasher.CheckPolicy(req.Password); err != nil {
		return model.User{}, apierror.Validation(err.Error(), "password")
	}
	if err := validateNickname(user.Nickname); err != nil {
		return model.User{}, err
	}
	if err := validateLocale(user.Locale); err != nil {
		return model.User{}, err
	}
	if err := validateTimezone(user.Timezone); err != nil {
		return model.User{}, err
	}
	if err := validateCurrency(user.Currency, "currency"); err != nil {
		return model.User{}, err
	}

	return user, nil
}

func (s *AuthService) checkAvailable(ctx context.Context, user model.User) error {
	taken, err := s.users.ExistsByUsername(ctx, user.Username)
	if err != nil {
		return err
	}
	if taken {
		return apierror.Conflict("username already exists", user.Username)
	}

	taken, err = s.users.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return err
	}
	if taken {
		return apierror.Conflict("email already exists", user.Email)
	}

	return nil
}

// throttle fails open: a broken limiter backend must not lock everyone out.
func (s *AuthService) throttle(ctx context.Context, username string) error {
	if s.limiter == nil {
		return nil
	}

	key := ActorFromContext(ctx).IP + "|" + strings.ToLower(username)
	allowed, retryAfter, err := s.limiter.Allow(ctx, key, s.now())
	if err != nil {
		slog.Warn("login limiter unavailable", "error", err)
		return nil
	}
	if !allowed {
		return apierror.RateLimited("too many login attempts", retryAfter)
	}
	return nil
}

func (s *AuthService) actorFor(ctx context.Context, user model.User) model.AuditActor {
	actor := ActorFromContext(ctx)
	actor.UserID = user.ID
	actor.Username = user.Username
	return actor
}

func (s *AuthService) record(event string, outcome string) {
	if s.events != nil {
		s.events.AuthEvent(event, outcome)
	}
}
