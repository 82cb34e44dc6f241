package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProfileUpdate(t *testing.T) {
	tests := []struct {
		name      string
		input     ProfileInput
		wantName  string
		wantField string
	}{
		{name: "valid", input: ProfileInput{Name: "Ada Lovelace"}, wantName: "Ada Lovelace"},
		{name: "trims whitespace", input: ProfileInput{Name: "  Ada  "}, wantName: "Ada"},
		{name: "empty", input: ProfileInput{Name: "   "}, wantField: "name"},
		{name: "too long", input: ProfileInput{Name: strings.Repeat("x", 101)}, wantField: "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, fieldErrors := ValidateProfileUpdate(tt.input)
			if tt.wantField != "" {
				require.NotEmpty(t, fieldErrors)
				assert.Equal(t, tt.wantField, fieldErrors[0].Field)
				return
			}
			require.Empty(t, fieldErrors)
			assert.Equal(t, tt.wantName, change.Name)
		})
	}
}

func TestUpdateProfileChangesOnlyName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	signup(t, env, "a@x.com")
	user := verify(t, env, "a@x.com")

	updated, fieldErrors, err := env.svc.UpdateProfile(ctx, user.ID, ProfileInput{Name: "New Name"})
	require.NoError(t, err)
	require.Empty(t, fieldErrors)
	assert.Equal(t, "New Name", updated.Name)

	stored := env.storedUser(t, "a@x.com")
	assert.Equal(t, "New Name", stored.Name)
	assert.Equal(t, "a@x.com", stored.Email)
	assert.True(t, stored.IsActive)
}

func TestUpdateProfileFieldErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	signup(t, env, "a@x.com")
	user := verify(t, env, "a@x.com")

	updated, fieldErrors, err := env.svc.UpdateProfile(ctx, user.ID, ProfileInput{Name: ""})
	require.NoError(t, err)
	require.NotEmpty(t, fieldErrors)
	assert.Nil(t, updated)
	assert.Equal(t, "Test User", env.storedUser(t, "a@x.com").Name)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	signup(t, env, "a@x.com")
	user := verify(t, env, "a@x.com")

	err := env.svc.ChangePassword(ctx, user.ID, "wrong password", "next password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = env.svc.ChangePassword(ctx, user.ID, "correct horse", "next password")
	require.NoError(t, err)

	stored := env.storedUser(t, "a@x.com")
	assert.True(t, env.hasher.Verify(*stored.PasswordHash, "next password"))
	assert.False(t, env.hasher.Verify(*stored.PasswordHash, "correct horse"))
}
