package identity_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func tokenFromMail(t *testing.T, m sentMail) string {
	t.Helper()
	const prefix = "To reset your password, use this token: "
	require.True(t, strings.HasPrefix(m.Body, prefix), "unexpected body %q", m.Body)
	return strings.TrimPrefix(m.Body, prefix)
}

func TestRequestResetPersistsTokenAndMailsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.createUser(t, "alice", "alice@example.com", "")
	requestedAt := f.clock.Now()

	require.NoError(t, f.reset.RequestReset(ctx, "Alice@Example.com"))

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Equal(t, "Password Reset Request", sent[0].Subject)

	token := tokenFromMail(t, sent[0])
	assert.Len(t, token, 64)

	stored, err := f.store.FindByID(ctx, view.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ResetToken)
	require.NotNil(t, stored.ResetTokenExpiry)
	assert.True(t, stored.ResetTokenExpiry.Equal(requestedAt.Add(24*time.Hour)),
		"expiry %s", stored.ResetTokenExpiry)

	sum := sha256.Sum256([]byte(token))
	assert.Equal(t, hex.EncodeToString(sum[:]), stored.ResetToken)

	assert.Contains(t, f.sink.Types(), identity.ActivityEventPasswordResetRequested)
}

func TestRequestResetUnknownEmail(t *testing.T) {
	f := newFixture(t)

	err := f.reset.RequestReset(context.Background(), "nobody@example.com")
	require.Error(t, err)
	assert.True(t, identity.IsNotFound(err))
	assert.Empty(t, f.mailer.Sent())
}

func TestRequestResetMailFailureKeepsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mailer.err = errors.New("smtp down")

	view := f.createUser(t, "bob", "bob@example.com", "")

	err := f.reset.RequestReset(ctx, "bob@example.com")
	require.Error(t, err)
	assert.True(t, identity.IsMailDispatchError(err))

	stored, err := f.store.FindByID(ctx, view.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ResetToken)

	f.mailer.err = nil
	token := tokenFromMail(t, f.mailer.Sent()[0])
	require.NoError(t, f.reset.ResetPassword(ctx, token, "brandnew123"))
}

func TestResetPasswordConsumesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view := f.createUser(t, "carol", "carol@example.com", "")
	require.NoError(t, f.reset.RequestReset(ctx, "carol@example.com"))
	token := tokenFromMail(t, f.mailer.Sent()[0])

	require.NoError(t, f.reset.ResetPassword(ctx, token, "brandnew123"))

	stored, err := f.store.FindByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ResetToken)
	assert.Nil(t, stored.ResetTokenExpiry)
	assert.NoError(t, f.hasher.ComparePasswordAndHash("brandnew123", stored.PasswordHash))

	err = f.reset.ResetPassword(ctx, token, "another123")
	require.Error(t, err)
	assert.True(t, identity.IsResetTokenInvalid(err))

	_, err = f.auth.Authenticate(ctx, identity.Credentials{Email: "carol@example.com", Password: "brandnew123"})
	require.NoError(t, err)

	assert.Contains(t, f.sink.Types(), identity.ActivityEventPasswordResetSuccess)
}

func TestResetPasswordExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createUser(t, "dave", "dave@example.com", "")
	require.NoError(t, f.reset.RequestReset(ctx, "dave@example.com"))
	token := tokenFromMail(t, f.mailer.Sent()[0])

	f.clock.Advance(24 * time.Hour)

	err := f.reset.ResetPassword(ctx, token, "brandnew123")
	require.Error(t, err)
	assert.True(t, identity.IsResetTokenExpired(err))

	_, err = f.auth.Authenticate(ctx, identity.Credentials{Email: "dave@example.com", Password: "password123"})
	assert.NoError(t, err)
}

func TestResetPasswordRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.reset.ResetPassword(ctx, "", "brandnew123")
	assert.True(t, identity.IsResetTokenInvalid(err))

	err = f.reset.ResetPassword(ctx, "deadbeef", "brandnew123")
	assert.True(t, identity.IsResetTokenInvalid(err))

	err = f.reset.ResetPassword(ctx, "deadbeef", "short")
	assert.True(t, identity.IsValidationError(err))
}

func TestResetPasswordLosingConcurrentConsumer(t *testing.T) {
	ctx := context.Background()
	clock := newFixedClock()
	store := &MockStore{}

	token := "raced-token"
	sum := sha256.Sum256([]byte(token))
	digest := hex.EncodeToString(sum[:])

	expiry := clock.Now().Add(time.Hour)
	user := &identity.User{
		ID:               uuid.New(),
		Email:            "race@example.com",
		ResetToken:       digest,
		ResetTokenExpiry: &expiry,
	}

	// the row was read before another consumer cleared it
	store.On("FindByResetToken", mock.Anything, digest).Return(user, nil)
	store.On("ConsumeResetToken", mock.Anything, user.ID, digest, mock.AnythingOfType("string"), clock.Now()).
		Return(nil, identity.ErrNotFound("reset_token", digest))

	users := identity.NewUserManager(store, newTestHasher(), identity.WithManagerLogger(nopLogger{}))
	sink := &recordingSink{}
	resetter := identity.NewPasswordResetter(users, &recordingMailer{},
		identity.WithResetClock(clock.Now),
		identity.WithResetLogger(nopLogger{}),
		identity.WithResetActivitySink(sink),
	)

	err := resetter.ResetPassword(ctx, token, "brandnew123")
	require.Error(t, err)
	assert.True(t, identity.IsResetTokenInvalid(err))
	assert.Empty(t, sink.events)

	store.AssertExpectations(t)
}
