package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"card-admin/internal/model"
	"card-admin/internal/security"
	"card-admin/internal/testutil"
	"card-admin/pkg/apierror"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	users  *testutil.UserStore
	cards  *testutil.CardStore
	audits *testutil.AuditStore
	hasher *security.PasswordHasher
	tokens *security.TokenIssuer
	audit  *AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hasher, err := security.NewPasswordHasher(bcrypt.MinCost, 8)
	require.NoError(t, err)
	tokens, err := security.NewTokenIssuer(testSecret, "card-admin-test", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	audits := testutil.NewAuditStore()
	return &fixture{
		users:  testutil.NewUserStore(),
		cards:  testutil.NewCardStore(),
		audits: audits,
		hasher: hasher,
		tokens: tokens,
		audit:  NewAuditService(audits),
	}
}

func (f *fixture) authService(opts AuthOptions) *AuthService {
	if opts.Audit == nil {
		opts.Audit = f.audit
	}
	return NewAuthService(f.users, f.hasher, f.tokens, opts)
}

func (f *fixture) register(t *testing.T, username string) model.RegisteredUser {
	t.Helper()

	registered, err := f.authService(AuthOptions{}).Register(context.Background(), model.RegisterRequest{
		Username: username,
		Email:    username + "@ex.com",
		Password: "Secret123456",
	})
	require.NoError(t, err)
	return registered
}

func (f *fixture) makeAdmin(t *testing.T, userID string) {
	t.Helper()

	u, ok := f.users.Get(userID)
	require.True(t, ok)
	u.IsAdmin = true
	require.NoError(t, f.users.UpdateFlags(context.Background(), u))
}

func requireAPIError(t *testing.T, err error, status int) *apierror.APIError {
	t.Helper()

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	require.Equal(t, status, apiErr.HTTPStatus, apiErr.Error())
	return apiErr
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error) {
	args := m.Called(ctx, key, now)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) AuthEvent(event string, outcome string) {
	m.Called(event, outcome)
}
