package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DefaultResetTokenTTL is how long a reset token stays usable.
const DefaultResetTokenTTL = 24 * time.Hour

const (
	resetTokenBytes  = 32
	resetMailSubject = "Password Reset Request"
	resetMailBody    = "To reset your password, use this token: "
)

// PasswordResetter drives the reset window: it hands out single use
// tokens by mail and consumes them to set a new password.
type PasswordResetter struct {
	users        *UserManager
	store        Store
	hasher       PasswordHasher
	mailer       Mailer
	ttl          time.Duration
	now          func() time.Time
	logger       Logger
	activitySink ActivitySink
	newToken     func() (string, error)
}

// ResetOption customizes a PasswordResetter.
type ResetOption func(*PasswordResetter)

// WithResetTTL overrides DefaultResetTokenTTL.
func WithResetTTL(ttl time.Duration) ResetOption {
	return func(r *PasswordResetter) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithResetClock injects a custom clock.
func WithResetClock(clock func() time.Time) ResetOption {
	return func(r *PasswordResetter) {
		if clock != nil {
			r.now = clock
		}
	}
}

func WithResetLogger(logger Logger) ResetOption {
	return func(r *PasswordResetter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithResetActivitySink(sink ActivitySink) ResetOption {
	return func(r *PasswordResetter) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// WithResetTokenGenerator replaces the random token source.
func WithResetTokenGenerator(fn func() (string, error)) ResetOption {
	return func(r *PasswordResetter) {
		if fn != nil {
			r.newToken = fn
		}
	}
}

// NewPasswordResetter returns a PasswordResetter sending mail through mailer.
func NewPasswordResetter(users *UserManager, mailer Mailer, opts ...ResetOption) *PasswordResetter {
	r := &PasswordResetter{
		users:        users,
		store:        users.store,
		hasher:       users.hasher,
		mailer:       mailer,
		ttl:          DefaultResetTokenTTL,
		now:          time.Now,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		newToken:     generateResetToken,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.mailer == nil {
		r.mailer = MailerFunc(nil)
	}
	return r
}

// RequestReset opens a reset window for email and mails the token to it.
// When the mail cannot be handed off the window stays open and a
// MailDispatchError is returned.
func (r *PasswordResetter) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	token, err := r.newToken()
	if err != nil {
		return r.users.fail("request_reset", err)
	}

	var user *User
	err = r.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		var err error
		user, err = tx.FindByEmail(ctx, email)
		if err != nil {
			return err
		}

		expiry := r.now().Add(r.ttl)
		user.ResetToken = digestResetToken(token)
		user.ResetTokenExpiry = &expiry

		_, err = tx.Save(ctx, user)
		return err
	})
	if err != nil {
		return r.users.fail("request_reset", err)
	}

	r.emit(ctx, ActivityEventPasswordResetRequested, user, nil)

	if err := r.mailer.Send(ctx, user.Email, resetMailSubject, resetMailBody+token); err != nil {
		r.logger.Error("password reset mail dispatch failed", "user_id", user.ID, "error", err)
		return ErrMailDispatch(err, user.Email)
	}

	return nil
}

// ResetPassword consumes token and sets newPassword. Tokens are single use.
func (r *PasswordResetter) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrResetTokenInvalid()
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := r.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}

	digest := digestResetToken(token)
	now := r.now()

	var user *User
	err = r.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		found, err := tx.FindByResetToken(ctx, digest)
		if err != nil {
			if IsNotFound(err) {
				return ErrResetTokenInvalid()
			}
			return err
		}

		if !found.HasValidResetToken(now) {
			return ErrResetTokenExpired()
		}

		user, err = tx.ConsumeResetToken(ctx, found.ID, digest, hash, now)
		if IsNotFound(err) {
			return ErrResetTokenInvalid()
		}
		return err
	})
	if err != nil {
		return r.users.fail("reset_password", err)
	}

	r.emit(ctx, ActivityEventPasswordResetSuccess, user, nil)
	return nil
}

func (r *PasswordResetter) emit(ctx context.Context, kind ActivityEventType, user *User, metadata map[string]any) {
	recordActivity(ctx, r.activitySink, r.logger, r.now, ActivityEvent{
		EventType: kind,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Metadata:  metadata,
	})
}

func generateResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// digestResetToken is what gets stored; the raw token only travels by mail.
func digestResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
