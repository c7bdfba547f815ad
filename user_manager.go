package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// UserManager owns identity lifecycle: creation, updates, status and
// credential changes. Every operation runs in one store unit of work.
type UserManager struct {
	store        Store
	hasher       PasswordHasher
	machine      UserStateMachine
	logger       Logger
	activitySink ActivitySink
	phoneRegion  string
	now          func() time.Time
}

// ManagerOption customizes a UserManager.
type ManagerOption func(*UserManager)

// WithManagerLogger sets the logger.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *UserManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerActivitySink sets where lifecycle events go.
func WithManagerActivitySink(sink ActivitySink) ManagerOption {
	return func(m *UserManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachine replaces the status transition function. Status events
// are published through the manager's sink once the change is committed.
func WithStateMachine(machine UserStateMachine) ManagerOption {
	return func(m *UserManager) {
		if machine != nil {
			m.machine = machine
		}
	}
}

// WithPhoneRegion sets the default region used to normalize phone numbers.
func WithPhoneRegion(region string) ManagerOption {
	return func(m *UserManager) {
		m.phoneRegion = region
	}
}

// WithManagerClock injects a custom clock.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *UserManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// NewUserManager builds a UserManager over store and hasher.
func NewUserManager(store Store, hasher PasswordHasher, opts ...ManagerOption) *UserManager {
	m := &UserManager{
		store:        store,
		hasher:       hasher,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		phoneRegion:  "US",
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.hasher == nil {
		m.hasher = NewBcryptHasher(0)
	}
	if m.machine == nil {
		m.machine = NewUserStateMachine(
			WithStateMachineActivitySink(m.activitySink),
			WithStateMachineLogger(m.logger),
			WithStateMachineClock(m.now),
		)
	}

	return m
}

// Create registers a new identity. Uniqueness is checked in the order
// username, email, phone; the store constraints back the checks up.
func (m *UserManager) Create(ctx context.Context, candidate UserCandidate) (*UserView, error) {
	user, err := m.create(ctx, candidate)
	if err != nil {
		return nil, err
	}
	return user.View(), nil
}

func (m *UserManager) create(ctx context.Context, candidate UserCandidate) (*User, error) {
	m.logger.Debug("creating user", "username", candidate.Username)

	user := &User{
		Username:  trimmed(candidate.Username),
		Email:     normalizeEmail(candidate.Email),
		Phone:     NormalizePhone(candidate.Phone, m.phoneRegion),
		FirstName: trimmed(candidate.FirstName),
		LastName:  trimmed(candidate.LastName),
		Role:      candidate.Role,
		Status:    candidate.Status,
	}
	user.EnsureDefaults()

	if err := user.validateProfile(); err != nil {
		return nil, err
	}
	if err := validatePassword(candidate.Password); err != nil {
		return nil, err
	}

	hash, err := m.hasher.HashPassword(candidate.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := user.Validate(); err != nil {
		return nil, err
	}

	err = m.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		if err := checkAvailable(ctx, tx, user.Username, user.Email, user.Phone); err != nil {
			return err
		}
		_, err := tx.Save(ctx, user)
		return err
	})
	if err != nil {
		return nil, m.fail("create", loginConflict(user, err))
	}

	m.record(ctx, ActivityEventUserCreated, user.ID, nil)
	return user, nil
}

// Update replaces the profile fields of id. Uniqueness is only checked
// for the fields that changed.
func (m *UserManager) Update(ctx context.Context, id uuid.UUID, candidate UserCandidate) (*UserView, error) {
	m.logger.Debug("updating user", "id", id)

	var updated *User
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		existing, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}

		next := *existing
		next.Username = trimmed(candidate.Username)
		next.Email = normalizeEmail(candidate.Email)
		next.Phone = NormalizePhone(candidate.Phone, m.phoneRegion)
		next.FirstName = trimmed(candidate.FirstName)
		next.LastName = trimmed(candidate.LastName)

		if err := next.Validate(); err != nil {
			return err
		}

		var username, email, phone string
		if next.Username != existing.Username {
			username = next.Username
		}
		if next.Email != existing.Email {
			email = next.Email
		}
		if next.Phone != existing.Phone {
			phone = next.Phone
		}
		if err := checkAvailable(ctx, tx, username, email, phone); err != nil {
			return err
		}

		updated, err = tx.Save(ctx, &next)
		return err
	})
	if err != nil {
		return nil, m.fail("update", err)
	}

	m.record(ctx, ActivityEventUserUpdated, updated.ID, nil)
	return updated.View(), nil
}

// Delete removes id permanently.
func (m *UserManager) Delete(ctx context.Context, id uuid.UUID) error {
	m.logger.Debug("deleting user", "id", id)

	err := m.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		exists, err := tx.ExistsByID(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound("id", id)
		}
		return tx.DeleteByID(ctx, id)
	})
	if err != nil {
		return m.fail("delete", err)
	}

	m.record(ctx, ActivityEventUserDeleted, id, nil)
	return nil
}

func (m *UserManager) GetByID(ctx context.Context, id uuid.UUID) (*UserView, error) {
	return m.get(ctx, "get_by_id", func(ctx context.Context, tx Store) (*User, error) {
		return tx.FindByID(ctx, id)
	})
}

func (m *UserManager) GetByUsername(ctx context.Context, username string) (*UserView, error) {
	return m.get(ctx, "get_by_username", func(ctx context.Context, tx Store) (*User, error) {
		return tx.FindByUsername(ctx, username)
	})
}

func (m *UserManager) GetByEmail(ctx context.Context, email string) (*UserView, error) {
	return m.get(ctx, "get_by_email", func(ctx context.Context, tx Store) (*User, error) {
		return tx.FindByEmail(ctx, email)
	})
}

// ListAll returns one page of identities in store order.
func (m *UserManager) ListAll(ctx context.Context, page Page) (*PageResult[*UserView], error) {
	page = page.Normalize()

	var (
		records []*User
		total   int
	)
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		var err error
		records, total, err = tx.FindAll(ctx, page)
		return err
	})
	if err != nil {
		return nil, m.fail("list_all", err)
	}

	return &PageResult[*UserView]{
		Items:  views(records),
		Total:  total,
		Number: page.Number,
		Size:   page.Size,
	}, nil
}

// ListByStatus returns every identity holding status.
func (m *UserManager) ListByStatus(ctx context.Context, status UserStatus) ([]*UserView, error) {
	if !status.IsValid() {
		return nil, ErrInvalidIdentity(errors.New("unknown status: " + string(status)))
	}

	var records []*User
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		var err error
		records, err = tx.FindByStatus(ctx, status)
		return err
	})
	if err != nil {
		return nil, m.fail("list_by_status", err)
	}
	return views(records), nil
}

// ListActiveAdmins returns the active identities holding the admin role.
func (m *UserManager) ListActiveAdmins(ctx context.Context) ([]*UserView, error) {
	active, err := m.ListByStatus(ctx, UserStatusActive)
	if err != nil {
		return nil, err
	}

	admins := make([]*UserView, 0, len(active))
	for _, u := range active {
		if u.Role == RoleAdmin {
			admins = append(admins, u)
		}
	}
	return admins, nil
}

// Activate sets id to active, whatever its current status.
func (m *UserManager) Activate(ctx context.Context, id uuid.UUID) (*UserView, error) {
	return m.transition(ctx, "activate", id, UserStatusActive)
}

// Suspend sets id to suspended, whatever its current status.
func (m *UserManager) Suspend(ctx context.Context, id uuid.UUID) (*UserView, error) {
	return m.transition(ctx, "suspend", id, UserStatusSuspended)
}

func (m *UserManager) transition(ctx context.Context, op string, id uuid.UUID, target UserStatus) (*UserView, error) {
	m.logger.Debug("changing user status", "id", id, "status", target)

	var (
		updated *User
		event   *ActivityEvent
	)
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		user, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if event, err = m.machine.Apply(actorFromContext(ctx), user, target); err != nil {
			return err
		}
		updated, err = tx.Save(ctx, user)
		return err
	})
	if err != nil {
		if IsInvalidTransition(err) {
			return nil, err
		}
		return nil, m.fail(op, err)
	}

	if event != nil {
		recordActivity(ctx, m.activitySink, m.logger, m.now, *event)
	}
	return updated.View(), nil
}

func (m *UserManager) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	return m.available(ctx, "is_username_available", func(ctx context.Context, tx Store) (bool, error) {
		return tx.ExistsByUsername(ctx, trimmed(username))
	})
}

func (m *UserManager) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	return m.available(ctx, "is_email_available", func(ctx context.Context, tx Store) (bool, error) {
		return tx.ExistsByEmail(ctx, normalizeEmail(email))
	})
}

func (m *UserManager) IsPhoneAvailable(ctx context.Context, phone string) (bool, error) {
	return m.available(ctx, "is_phone_available", func(ctx context.Context, tx Store) (bool, error) {
		return tx.ExistsByPhone(ctx, NormalizePhone(phone, m.phoneRegion))
	})
}

// ChangePassword replaces the password of id after checking current.
// The current password is checked before the new one is validated; on a
// mismatch the stored hash is left untouched.
func (m *UserManager) ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error {
	m.logger.Debug("changing password", "id", id)

	var current *User
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		var err error
		current, err = tx.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return m.fail("change_password", err)
	}

	if err := m.hasher.ComparePasswordAndHash(currentPassword, current.PasswordHash); err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := m.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = m.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		user, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		// changed by someone else since it was checked
		if user.PasswordHash != current.PasswordHash {
			return ErrInvalidCredentials()
		}
		user.PasswordHash = hash
		_, err = tx.Save(ctx, user)
		return err
	})
	if err != nil {
		return m.fail("change_password", err)
	}

	m.record(ctx, ActivityEventPasswordChanged, id, nil)
	return nil
}

func (m *UserManager) get(ctx context.Context, op string, find func(context.Context, Store) (*User, error)) (*UserView, error) {
	var user *User
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		var err error
		user, err = find(ctx, tx)
		return err
	})
	if err != nil {
		return nil, m.fail(op, err)
	}
	return user.View(), nil
}

func (m *UserManager) available(ctx context.Context, op string, exists func(context.Context, Store) (bool, error)) (bool, error) {
	var taken bool
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		var err error
		taken, err = exists(ctx, tx)
		return err
	})
	if err != nil {
		return false, m.fail(op, err)
	}
	return !taken, nil
}

// fail passes classified errors through and hides anything else
// behind a PersistenceError.
func (m *UserManager) fail(op string, err error) error {
	if isKnownKind(err) || IsInvalidTransition(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	m.logger.Error("identity store failure", "operation", op, "error", err)
	return ErrPersistence(err, op)
}

func (m *UserManager) record(ctx context.Context, kind ActivityEventType, id uuid.UUID, metadata map[string]any) {
	recordActivity(ctx, m.activitySink, m.logger, m.now, ActivityEvent{
		EventType: kind,
		Actor:     actorFromContext(ctx),
		UserID:    id.String(),
		Metadata:  metadata,
	})
}

// checkAvailable runs the uniqueness pre-checks in the order username,
// email, phone. Empty values are skipped. When the username is the email
// address the email is checked first, so a taken login reports email.
func checkAvailable(ctx context.Context, tx Store, username, email, phone string) error {
	type check struct {
		field  string
		value  string
		exists func(context.Context, string) (bool, error)
	}

	checks := []check{
		{FieldUsername, username, tx.ExistsByUsername},
		{FieldEmail, email, tx.ExistsByEmail},
		{FieldPhone, phone, tx.ExistsByPhone},
	}
	if username != "" && normalizeEmail(username) == email {
		checks[0], checks[1] = checks[1], checks[0]
	}

	for _, c := range checks {
		if c.value == "" {
			continue
		}
		taken, err := c.exists(ctx, c.value)
		if err != nil {
			return err
		}
		if taken {
			return ErrAlreadyExists(c.field)
		}
	}
	return nil
}

// loginConflict reports a username conflict as an email conflict when the
// username is the email address. The store may raise either constraint
// first for such records.
func loginConflict(user *User, err error) error {
	field, ok := AlreadyExistsField(err)
	if !ok || field != FieldUsername {
		return err
	}
	if normalizeEmail(user.Username) != user.Email {
		return err
	}
	return ErrAlreadyExists(FieldEmail)
}

func views(records []*User) []*UserView {
	out := make([]*UserView, 0, len(records))
	for _, r := range records {
		out = append(out, r.View())
	}
	return out
}
