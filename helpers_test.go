package identity_test

import (
	"context"
	"sync"
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := identity.OpenDB("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, identity.CreateSchema(context.Background(), db))
	return db
}

func newTestStore(t *testing.T, opts ...identity.StoreOption) identity.Store {
	t.Helper()
	return identity.NewBunStore(newTestDB(t), opts...)
}

func newTestHasher() identity.PasswordHasher {
	return identity.NewBcryptHasher(bcrypt.MinCost)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return m.err
}

func (m *recordingMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []identity.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event identity.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []identity.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]identity.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	store   identity.Store
	hasher  identity.PasswordHasher
	users   *identity.UserManager
	tokens  identity.TokenService
	auth    *identity.Authenticator
	mailer  *recordingMailer
	reset   *identity.PasswordResetter
	clock   *fixedClock
	sink    *recordingSink
	signKey []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   newTestStore(t),
		hasher:  newTestHasher(),
		mailer:  &recordingMailer{},
		clock:   newFixedClock(),
		sink:    &recordingSink{},
		signKey: []byte("test-signing-key-0123456789abcdef"),
	}

	f.users = identity.NewUserManager(f.store, f.hasher,
		identity.WithManagerLogger(nopLogger{}),
		identity.WithManagerActivitySink(f.sink),
		identity.WithManagerClock(f.clock.Now),
	)

	tokens, err := identity.NewTokenService(f.signKey, time.Hour, "test-issuer", []string{"test:audience"},
		identity.WithTokenClock(f.clock.Now),
		identity.WithTokenLogger(nopLogger{}),
	)
	require.NoError(t, err)
	f.tokens = tokens

	f.auth = identity.NewAuthenticator(f.users, f.tokens).
		WithLogger(nopLogger{}).
		WithActivitySink(f.sink)

	f.reset = identity.NewPasswordResetter(f.users, f.mailer,
		identity.WithResetClock(f.clock.Now),
		identity.WithResetLogger(nopLogger{}),
		identity.WithResetActivitySink(f.sink),
	)

	return f
}

func (f *fixture) createUser(t *testing.T, username, email, phone string) *identity.UserView {
	t.Helper()
	view, err := f.users.Create(context.Background(), identity.UserCandidate{
		Username: username,
		Email:    email,
		Phone:    phone,
		Password: "password123",
	})
	require.NoError(t, err)
	return view
}
