package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-admin/internal/model"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestUserService_MeAndUpdateProfile(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.hasher, f.audit)
	ctx := context.Background()
	alice := f.register(t, "alice")

	profile, err := svc.Me(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)

	updated, err := svc.UpdateProfile(ctx, alice.ID, model.UpdateProfileRequest{
		Nickname: strPtr("Ally"),
		Currency: strPtr("eur"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ally", updated.Nickname)
	assert.Equal(t, "EUR", updated.Currency)
	assert.Equal(t, "UTC", updated.Timezone, "untouched fields keep their value")

	_, err = svc.UpdateProfile(ctx, alice.ID, model.UpdateProfileRequest{Timezone: strPtr("Nowhere/City")})
	requireAPIError(t, err, http.StatusUnprocessableEntity)

	_, err = svc.Me(ctx, uuid.NewString())
	requireAPIError(t, err, http.StatusNotFound)

	_, err = svc.Me(ctx, "not-a-uuid")
	requireAPIError(t, err, http.StatusNotFound)
}

func TestUserService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.hasher, f.audit)
	auth := f.authService(AuthOptions{})
	ctx := context.Background()
	alice := f.register(t, "alice")

	err := svc.ChangePassword(ctx, alice.ID, model.ChangePasswordRequest{CurrentPassword: "wrong-one", NewPassword: "NewSecret123"})
	requireAPIError(t, err, http.StatusUnauthorized)

	err = svc.ChangePassword(ctx, alice.ID, model.ChangePasswordRequest{CurrentPassword: "Secret123456", NewPassword: "short"})
	assert.Equal(t, "new_password", requireAPIError(t, err, http.StatusUnprocessableEntity).Details)

	err = svc.ChangePassword(ctx, alice.ID, model.ChangePasswordRequest{CurrentPassword: "Secret123456", NewPassword: "Secret123456"})
	requireAPIError(t, err, http.StatusUnprocessableEntity)

	require.NoError(t, svc.ChangePassword(ctx, alice.ID, model.ChangePasswordRequest{
		CurrentPassword: "Secret123456",
		NewPassword:     "NewSecret123",
	}))

	_, err = auth.Authenticate(ctx, "alice", "Secret123456")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	_, err = auth.Authenticate(ctx, "alice", "NewSecret123")
	assert.NoError(t, err)
}

func TestUserService_AdminOperationsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.hasher, f.audit)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	_, _, err := svc.List(ctx, alice.ID, model.UserQuery{})
	requireAPIError(t, err, http.StatusForbidden)

	_, err = svc.Get(ctx, alice.ID, bob.ID)
	requireAPIError(t, err, http.StatusForbidden)

	err = svc.Delete(ctx, uuid.NewString(), bob.ID)
	requireAPIError(t, err, http.StatusUnauthorized)
}

func TestUserService_List(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.hasher, f.audit)
	ctx := context.Background()
	admin := f.register(t, "admin")
	f.makeAdmin(t, admin.ID)
	for _, name := range []string{"alice", "alfred", "bob"} {
		f.register(t, name)
	}

	users, meta, err := svc.List(ctx, admin.ID, model.UserQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, model.Meta{Page: 1, Limit: 2, Total: 4, TotalPages: 2}, meta)

	users, meta, err = svc.List(ctx, admin.ID, model.UserQuery{Search: "al", Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 100, meta.Limit)
}

func TestUserService_UpdateFlags(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.hasher, f.audit)
	ctx := context.Background()
	admin := f.register(t, "admin")
	f.makeAdmin(t, admin.ID)
	bob := f.register(t, "bob")

	updated, err := svc.UpdateFlags(ctx, admin.ID, bob.ID, model.UpdateFlagsRequest{IsVerified: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, updated.IsVerified)
	assert.True(t, updated.IsActive)

	_, err = svc.UpdateFlags(ctx, admin.ID, admin.ID, model.UpdateFlagsRequest{IsAdmin: boolPtr(false)})
	assert.Equal(t, "is_admin", requireAPIError(t, err, http.StatusUnprocessableEntity).Details)

	_, err = svc.UpdateFlags(ctx, admin.ID, bob.ID, model.UpdateFlagsRequest{})
	requireAPIError(t, err, http.StatusUnprocessableEntity)

	entries := f.audits.Entries()
	last := entries[len(entries)-1]
	assert.Equal(t, AuditFlagsUpdate, last.Action)
	assert.Equal(t, userFlags{IsActive: true}, last.Before)
	assert.Equal(t, userFlags{IsActive: true, IsVerified: true}, last.After)
}

func TestUserService_Delete(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.hasher, f.audit)
	auth := f.authService(AuthOptions{})
	ctx := context.Background()
	admin := f.register(t, "admin")
	f.makeAdmin(t, admin.ID)
	bob := f.register(t, "bob")

	err := svc.Delete(ctx, admin.ID, admin.ID)
	requireAPIError(t, err, http.StatusUnprocessableEntity)

	require.NoError(t, svc.Delete(ctx, admin.ID, bob.ID))

	stored, ok := f.users.Get(bob.ID)
	require.True(t, ok, "rows are kept after delete")
	assert.NotNil(t, stored.DeletedAt)

	_, err = auth.Authenticate(ctx, "bob", "Secret123456")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	err = svc.Delete(ctx, admin.ID, bob.ID)
	requireAPIError(t, err, http.StatusNotFound)

	again := f.register(t, "bob")
	assert.NotEqual(t, bob.ID, again.ID)
}
