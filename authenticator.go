package identity

import (
	"context"
	"time"
)

// Registration is the self-service sign up payload.
type Registration struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Credentials is an email/password pair.
type Credentials struct {
	Email    string
	Password string
}

// AuthResult is returned by Register and Authenticate.
type AuthResult struct {
	Token string
	User  *UserView
}

// Authenticator registers accounts and exchanges credentials for tokens.
// It does not look at status; gate login eligibility with Authorizer.
type Authenticator struct {
	users        *UserManager
	store        Store
	hasher       PasswordHasher
	tokens       TokenService
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
	dummyHash    string
}

// NewAuthenticator returns a new Authenticator. It hashes a throwaway
// password up front so every failed lookup costs one comparison.
func NewAuthenticator(users *UserManager, tokens TokenService) *Authenticator {
	a := &Authenticator{
		users:        users,
		store:        users.store,
		hasher:       users.hasher,
		tokens:       tokens,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
	a.dummyHash, _ = a.hasher.HashPassword(dummyPassword)
	return a
}

const dummyPassword = "not-a-real-password"

func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	a.logger = normalizeLogger(logger)
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.activitySink = normalizeActivitySink(sink)
	return a
}

// Register creates an inactive user account whose username is the email,
// then issues a token for it.
func (a *Authenticator) Register(ctx context.Context, reg Registration) (*AuthResult, error) {
	user, err := a.users.create(ctx, UserCandidate{
		Username:  reg.Email,
		Email:     reg.Email,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Password:  reg.Password,
		Role:      RoleUser,
		Status:    UserStatusInactive,
	})
	if err != nil {
		a.logger.Warn("registration failed", "email", normalizeEmail(reg.Email), "error", err)
		return nil, err
	}

	token, err := a.tokens.Issue(NewIdentityFromUser(user))
	if err != nil {
		a.logger.Error("registration token issue failed", "user_id", user.ID, "error", err)
		return nil, err
	}

	a.emit(ctx, ActivityEventUserRegistered, user.ID.String(), map[string]any{"email": user.Email})

	return &AuthResult{Token: token, User: user.View()}, nil
}

// Authenticate verifies creds and issues a token. Unknown emails and wrong
// passwords both fail with InvalidCredentials after one hash comparison.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (*AuthResult, error) {
	email := normalizeEmail(creds.Email)

	var user *User
	err := a.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		var err error
		user, err = tx.FindByEmail(ctx, email)
		return err
	})

	switch {
	case err == nil:
		err = a.hasher.ComparePasswordAndHash(creds.Password, user.PasswordHash)
	case IsNotFound(err):
		_ = a.hasher.ComparePasswordAndHash(creds.Password, a.dummyHash)
		err = ErrInvalidCredentials()
	default:
		err = a.users.fail("authenticate", err)
	}

	if err != nil {
		if IsInvalidCredentials(err) {
			a.logger.Info("login rejected", "email", email)
		}
		a.emit(ctx, ActivityEventLoginFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	token, err := a.tokens.Issue(NewIdentityFromUser(user))
	if err != nil {
		a.logger.Error("login token issue failed", "user_id", user.ID, "error", err)
		return nil, err
	}

	a.emit(ctx, ActivityEventLoginSuccess, user.ID.String(), map[string]any{"email": email})

	return &AuthResult{Token: token, User: user.View()}, nil
}

func (a *Authenticator) emit(ctx context.Context, kind ActivityEventType, userID string, metadata map[string]any) {
	actor := actorFromContext(ctx)
	if actor == SystemActor && userID != "" {
		actor = ActorRef{ID: userID, Type: "user"}
	}
	recordActivity(ctx, a.activitySink, a.logger, a.now, ActivityEvent{
		EventType: kind,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	})
}
