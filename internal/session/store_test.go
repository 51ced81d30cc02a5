package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreIsAbsent(t *testing.T) {
	_, ok := NewStore().Current()
	assert.False(t, ok)
}

func TestLoginThenCurrent(t *testing.T) {
	store := NewStore()
	sess := store.Login("42", RoleAdmin)

	got, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, "42", got.Identity)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.Equal(t, sess, got)
	assert.False(t, got.IssuedAt.IsZero())
}

func TestLogoutAlwaysYieldsAbsent(t *testing.T) {
	store := NewStore()
	store.Logout()
	_, ok := store.Current()
	assert.False(t, ok, "logout from absent stays absent")

	store.Login("7", RoleUser)
	store.Logout()
	_, ok = store.Current()
	assert.False(t, ok)
}

func TestLastLoginWins(t *testing.T) {
	store := NewStore()
	store.Login("1", RoleAdmin)
	store.Login("2", RoleUser)

	got, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, "2", got.Identity)
	assert.Equal(t, RoleUser, got.Role)
}

func TestCompleteAppliesWhenUntouched(t *testing.T) {
	store := NewStore()
	attempt := store.Begin()

	sess, err := store.Complete(attempt, "9", RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "9", sess.Identity)

	got, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, RoleUser, got.Role)
}

func TestCompleteSupersededByLogout(t *testing.T) {
	store := NewStore()
	attempt := store.Begin()
	store.Logout()

	_, err := store.Complete(attempt, "9", RoleAdmin)
	assert.ErrorIs(t, err, ErrSuperseded)
	_, ok := store.Current()
	assert.False(t, ok, "superseded login must not leak into the store")
}

func TestCompleteSupersededByLaterLogin(t *testing.T) {
	store := NewStore()
	first := store.Begin()
	second := store.Begin()

	_, err := store.Complete(second, "2", RoleUser)
	require.NoError(t, err)
	_, err = store.Complete(first, "1", RoleAdmin)
	assert.ErrorIs(t, err, ErrSuperseded)

	got, _ := store.Current()
	assert.Equal(t, "2", got.Identity)
}

func TestRestore(t *testing.T) {
	store := Restore(Session{Identity: "3", Role: RoleAdmin})
	got, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, got.Role)

	_, ok = Restore(Session{Identity: "3", Role: "librarian"}).Current()
	assert.False(t, ok)
	_, ok = Restore(Session{Role: RoleUser}).Current()
	assert.False(t, ok)
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{"admin": RoleAdmin, " USER ": RoleUser, "Admin": RoleAdmin}
	for in, want := range cases {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseRole("root")
	assert.ErrorIs(t, err, ErrUnknownRole)
}
