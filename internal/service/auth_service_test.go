package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"card-admin/internal/model"
	"card-admin/internal/ratelimit"
	"card-admin/internal/security"
	"card-admin/internal/testutil"
)

func TestAuthService_Register(t *testing.T) {
	f := newFixture(t)
	svc := f.authService(AuthOptions{})

	registered, err := svc.Register(context.Background(), model.RegisterRequest{
		Username: "alice",
		Email:    "Alice@Ex.com",
		Password: "Secret123456",
		Nickname: "  Al  ",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", registered.Username)
	assert.Equal(t, "alice@ex.com", registered.Email)
	assert.Equal(t, "Al", registered.Nickname)
	assert.True(t, registered.IsActive)
	assert.False(t, registered.IsVerified)
	assert.False(t, registered.IsAdmin)
	assert.Equal(t, "en-US", registered.Locale)
	assert.Equal(t, "UTC", registered.Timezone)
	assert.Equal(t, "USD", registered.Currency)
	assert.Equal(t, "Bearer", registered.TokenType)

	claims, err := f.tokens.Parse(registered.AccessToken, security.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.Subject)
	assert.True(t, claims.ExpiresAt.After(time.Now()))

	stored, ok := f.users.Get(registered.ID)
	require.True(t, ok)
	assert.NotEqual(t, "Secret123456", stored.PasswordHash)
	assert.True(t, f.hasher.Compare(stored.PasswordHash, "Secret123456"))
}

func TestAuthService_RegisterConflicts(t *testing.T) {
	f := newFixture(t)
	svc := f.authService(AuthOptions{})
	ctx := context.Background()

	f.register(t, "alice")

	_, err := svc.Register(ctx, model.RegisterRequest{Username: "ALICE", Email: "other@ex.com", Password: "Secret123456"})
	apiErr := requireAPIError(t, err, http.StatusConflict)
	assert.Equal(t, "username already exists", apiErr.Message)

	_, err = svc.Register(ctx, model.RegisterRequest{Username: "bob", Email: "ALICE@ex.com", Password: "Secret123456"})
	apiErr = requireAPIError(t, err, http.StatusConflict)
	assert.Equal(t, "email already exists", apiErr.Message)

	count, err := f.users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.authService(AuthOptions{})

	valid := func() model.RegisterRequest {
		return model.RegisterRequest{Username: "carol", Email: "carol@ex.com", Password: "Secret123456"}
	}

	cases := []struct {
		name  string
		edit  func(*model.RegisterRequest)
		field string
	}{
		{"missing username", func(r *model.RegisterRequest) { r.Username = " " }, "username"},
		{"short username", func(r *model.RegisterRequest) { r.Username = "ab" }, "username"},
		{"username with spaces", func(r *model.RegisterRequest) { r.Username = "carol smith" }, "username"},
		{"missing email", func(r *model.RegisterRequest) { r.Email = "" }, "email"},
		{"malformed email", func(r *model.RegisterRequest) { r.Email = "carol-at-ex" }, "email"},
		{"display name email", func(r *model.RegisterRequest) { r.Email = "Carol <carol@ex.com>" }, "email"},
		{"empty password", func(r *model.RegisterRequest) { r.Password = "" }, "password"},
		{"short password", func(r *model.RegisterRequest) { r.Password = "short" }, "password"},
		{"bad currency", func(r *model.RegisterRequest) { r.Currency = "dollars" }, "currency"},
		{"bad timezone", func(r *model.RegisterRequest) { r.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad locale", func(r *model.RegisterRequest) { r.Locale = "english please" }, "locale"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			tc.edit(&req)

			_, err := svc.Register(context.Background(), req)
			apiErr := requireAPIError(t, err, http.StatusUnprocessableEntity)
			assert.Equal(t, tc.field, apiErr.Details)
		})
	}

	count, err := f.users.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAuthService_RegisterAcceptsProfileFields(t *testing.T) {
	f := newFixture(t)

	registered, err := f.authService(AuthOptions{}).Register(context.Background(), model.RegisterRequest{
		Username: "dave",
		Email:    "dave@ex.com",
		Password: "Secret123456",
		Locale:   "pt-BR",
		Timezone: "America/Sao_Paulo",
		Currency: "brl",
	})
	require.NoError(t, err)

	assert.Equal(t, "pt-BR", registered.Locale)
	assert.Equal(t, "America/Sao_Paulo", registered.Timezone)
	assert.Equal(t, "BRL", registered.Currency)
}

func TestAuthService_ConcurrentRegisterSameUsername(t *testing.T) {
	f := newFixture(t)
	svc := f.authService(AuthOptions{})

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(context.Background(), model.RegisterRequest{
				Username: "racer",
				Email:    "racer" + string(rune('a'+i)) + "@ex.com",
				Password: "Secret123456",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		requireAPIError(t, err, http.StatusConflict)
	}
	assert.Equal(t, 1, successes)

	count, err := f.users.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// staleUserStore answers availability checks as if the row did not exist
// yet, so the insert is what hits the unique constraint.
type staleUserStore struct {
	*testutil.UserStore
}

func (staleUserStore) ExistsByUsername(context.Context, string) (bool, error) { return false, nil }

func (staleUserStore) ExistsByEmail(context.Context, string) (bool, error) { return false, nil }

func TestAuthService_RegisterLostRaceIsAudited(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(staleUserStore{f.users}, f.hasher, f.tokens, AuthOptions{Audit: f.audit})
	req := model.RegisterRequest{Username: "racer", Email: "racer@ex.com", Password: "Secret123456"}

	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	req.Email = "racer2@ex.com"
	_, err = svc.Register(context.Background(), req)
	apiErr := requireAPIError(t, err, http.StatusConflict)
	assert.Equal(t, "username or email already exists", apiErr.Message)

	var failures []model.AuditEntry
	for _, entry := range f.audits.Entries() {
		if entry.Action == AuditRegister && entry.Status == AuditFailure {
			failures = append(failures, entry)
		}
	}
	require.Len(t, failures, 1)
	assert.Equal(t, "user:racer", failures[0].Resource)
	assert.Contains(t, failures[0].Error, "already exists")
}

func TestAuthService_Authenticate(t *testing.T) {
	f := newFixture(t)
	svc := f.authService(AuthOptions{})
	ctx := context.Background()
	registered := f.register(t, "alice")

	user, err := svc.Authenticate(ctx, "Alice", "Secret123456")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "Secret123456")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	stored, _ := f.users.Get(registered.ID)
	stored.IsActive = false
	require.NoError(t, f.users.UpdateFlags(ctx, stored))
	_, err = svc.Authenticate(ctx, "alice", "Secret123456")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuthService_LoginFailuresLookTheSame(t *testing.T) {
	f := newFixture(t)
	svc := f.authService(AuthOptions{})
	ctx := ContextWithActor(context.Background(), model.AuditActor{IP: "10.0.0.7"})
	f.register(t, "alice")

	_, wrongPassword := svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "wrong"})
	_, unknownUser := svc.Login(ctx, model.LoginRequest{Username: "nobody", Password: "wrong"})

	first := requireAPIError(t, wrongPassword, http.StatusUnauthorized)
	second := requireAPIError(t, unknownUser, http.StatusUnauthorized)
	assert.Equal(t, first, second)

	entries := f.audits.Entries()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, AuditLogin, last.Action)
	assert.Equal(t, AuditFailure, last.Status)
	assert.Equal(t, "10.0.0.7", last.Actor.IP)
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	recorder := new(mockRecorder)
	recorder.On("AuthEvent", "login", AuditSuccess).Once()
	svc := f.authService(AuthOptions{Events: recorder})
	registered := f.register(t, "alice")

	result, err := svc.Login(context.Background(), model.LoginRequest{Username: "alice", Password: "Secret123456"})
	require.NoError(t, err)

	assert.Equal(t, registered.ID, result.ID)
	assert.Equal(t, "alice", result.Username)
	assert.NotEmpty(t, result.RefreshToken)

	claims, err := f.tokens.Parse(result.AccessToken, security.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.Subject)

	stored, _ := f.users.Get(registered.ID)
	assert.NotNil(t, stored.LastLoginAt)
	recorder.AssertExpectations(t)
}

func TestAuthService_LoginRequiresFields(t *testing.T) {
	svc := newFixture(t).authService(AuthOptions{})

	_, err := svc.Login(context.Background(), model.LoginRequest{Password: "x"})
	assert.Equal(t, "username", requireAPIError(t, err, http.StatusUnprocessableEntity).Details)

	_, err = svc.Login(context.Background(), model.LoginRequest{Username: "alice"})
	assert.Equal(t, "password", requireAPIError(t, err, http.StatusUnprocessableEntity).Details)
}

func TestAuthService_LoginThrottled(t *testing.T) {
	f := newFixture(t)
	svc := f.authService(AuthOptions{Limiter: ratelimit.NewMemory(2, time.Minute)})
	ctx := ContextWithActor(context.Background(), model.AuditActor{IP: "10.0.0.1"})
	f.register(t, "alice")

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, model.LoginRequest{Username: "alice", Password: "wrong"})
		requireAPIError(t, err, http.StatusUnauthorized)
	}

	_, err := svc.Login(ctx, model.LoginRequest{Username: "ALICE", Password: "Secret123456"})
	apiErr := requireAPIError(t, err, http.StatusTooManyRequests)
	assert.Greater(t, apiErr.RetryAfter, time.Duration(0))

	other := ContextWithActor(context.Background(), model.AuditActor{IP: "10.0.0.2"})
	_, err = svc.Login(other, model.LoginRequest{Username: "alice", Password: "Secret123456"})
	assert.NoError(t, err, "a different client is counted separately")
}

func TestAuthService_LoginLimiterFailsOpen(t *testing.T) {
	f := newFixture(t)
	limiter := new(mockLimiter)
	limiter.On("Allow", mock.Anything, "10.0.0.1|alice", mock.Anything).
		Return(false, time.Duration(0), errors.New("redis down"))
	svc := f.authService(AuthOptions{Limiter: limiter})
	ctx := ContextWithActor(context.Background(), model.AuditActor{IP: "10.0.0.1"})
	f.register(t, "alice")

	_, err := svc.Login(ctx, model.LoginRequest{Username: "Alice", Password: "Secret123456"})
	assert.NoError(t, err)
	limiter.AssertExpectations(t)
}

func TestAuthService_Refresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "alice")

	t.Run("keeps refresh token by default", func(t *testing.T) {
		pair, err := f.authService(AuthOptions{}).Refresh(ctx, registered.RefreshToken)
		require.NoError(t, err)

		assert.NotEqual(t, registered.AccessToken, pair.AccessToken)
		assert.Equal(t, registered.RefreshToken, pair.RefreshToken)

		claims, err := f.tokens.Parse(pair.AccessToken, security.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, claims.Subject)
	})

	t.Run("rotates when configured", func(t *testing.T) {
		pair, err := f.authService(AuthOptions{RotateRefresh: true}).Refresh(ctx, registered.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, registered.RefreshToken, pair.RefreshToken)

		_, err = f.tokens.Parse(pair.RefreshToken, security.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("rejects access tokens and garbage", func(t *testing.T) {
		svc := f.authService(AuthOptions{})

		_, err := svc.Refresh(ctx, registered.AccessToken)
		requireAPIError(t, err, http.StatusUnauthorized)

		_, err = svc.Refresh(ctx, "not.a.token")
		requireAPIError(t, err, http.StatusUnauthorized)

		_, err = svc.Refresh(ctx, "  ")
		requireAPIError(t, err, http.StatusUnprocessableEntity)
	})

	t.Run("rejects deleted accounts", func(t *testing.T) {
		require.NoError(t, f.users.SoftDelete(ctx, registered.ID, time.Now().UTC()))

		_, err := f.authService(AuthOptions{}).Refresh(ctx, registered.RefreshToken)
		requireAPIError(t, err, http.StatusUnauthorized)
	})
}

func TestAuthService_ValidateToken(t *testing.T) {
	f := newFixture(t)
	svc := f.authService(AuthOptions{})
	registered := f.register(t, "alice")

	claims, err := svc.ValidateToken(registered.AccessToken, "access")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.False(t, claims.IsAdmin)

	_, err = svc.ValidateToken(registered.RefreshToken, "access")
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	f.tokens.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	_, err = svc.ValidateToken(registered.AccessToken, "access")
	assert.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestAuthService_AuditFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.audits.Err = errors.New("audit table missing")

	_, err := f.authService(AuthOptions{}).Register(context.Background(), model.RegisterRequest{
		Username: "alice",
		Email:    "alice@ex.com",
		Password: "Secret123456",
	})
	assert.NoError(t, err)
	assert.Empty(t, f.audits.Entries())
}
