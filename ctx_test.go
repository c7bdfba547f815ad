package identity_test

import (
	"context"
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalContext(t *testing.T) {
	_, ok := identity.PrincipalFromContext(context.Background())
	assert.False(t, ok)

	p := &identity.Principal{Subject: "alice@example.com", Role: identity.RoleAdmin}
	got, ok := identity.PrincipalFromContext(identity.WithPrincipal(context.Background(), p))
	require.True(t, ok)
	assert.Same(t, p, got)

	_, ok = identity.PrincipalFromContext(identity.WithPrincipal(context.Background(), nil))
	assert.False(t, ok)
}

func TestActivityActorComesFromContext(t *testing.T) {
	f := newFixture(t)
	adminID := uuid.NewString()
	ctx := identity.WithPrincipal(context.Background(), &identity.Principal{
		Subject: "admin@example.com",
		UserID:  adminID,
		Role:    identity.RoleAdmin,
	})

	_, err := f.users.Create(ctx, identity.UserCandidate{
		Username: "someone",
		Email:    "someone@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	require.NotEmpty(t, f.sink.events)
	last := f.sink.events[len(f.sink.events)-1]
	assert.Equal(t, identity.ActivityEventUserCreated, last.EventType)
	assert.Equal(t, adminID, last.Actor.ID)
	assert.Equal(t, "admin", last.Actor.Type)
}

func TestIdentityAdapters(t *testing.T) {
	user := &identity.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		Role:         identity.RoleAdmin,
		Status:       identity.UserStatusActive,
	}

	id := identity.NewIdentityFromUser(user)
	assert.Equal(t, user.ID.String(), id.ID())
	assert.Equal(t, "alice", id.Username())
	assert.Equal(t, "alice@example.com", id.Email())
	assert.Equal(t, identity.RoleAdmin, id.Role())
	assert.Equal(t, identity.UserStatusActive, id.Status())
	assert.Equal(t, "hash", id.PasswordHash())
	assert.Equal(t, []string{"ROLE_ADMIN"}, id.Authorities())

	fromView := identity.NewIdentityFromView(user.View())
	assert.Equal(t, user.ID.String(), fromView.ID())
	assert.Empty(t, fromView.PasswordHash())

	assert.Nil(t, identity.NewIdentityFromUser(nil))
	assert.Nil(t, identity.NewIdentityFromView(nil))
}
