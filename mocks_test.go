package identity_test

import (
	"context"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of identity.Store
type MockStore struct {
	mock.Mock
}

var _ identity.Store = (*MockStore)(nil)

func (m *MockStore) user(args mock.Arguments) (*identity.User, error) {
	if u, ok := args.Get(0).(*identity.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockStore) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	return m.user(m.Called(ctx, username))
}

func (m *MockStore) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *MockStore) FindByPhone(ctx context.Context, phone string) (*identity.User, error) {
	return m.user(m.Called(ctx, phone))
}

func (m *MockStore) FindByResetToken(ctx context.Context, token string) (*identity.User, error) {
	return m.user(m.Called(ctx, token))
}

func (m *MockStore) FindByStatus(ctx context.Context, status identity.UserStatus) ([]*identity.User, error) {
	args := m.Called(ctx, status)
	users, _ := args.Get(0).([]*identity.User)
	return users, args.Error(1)
}

func (m *MockStore) FindAll(ctx context.Context, page identity.Page) ([]*identity.User, int, error) {
	args := m.Called(ctx, page)
	users, _ := args.Get(0).([]*identity.User)
	return users, args.Int(1), args.Error(2)
}

func (m *MockStore) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	args := m.Called(ctx, phone)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, user *identity.User) (*identity.User, error) {
	return m.user(m.Called(ctx, user))
}

func (m *MockStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) ConsumeResetToken(ctx context.Context, id uuid.UUID, tokenDigest, passwordHash string, at time.Time) (*identity.User, error) {
	return m.user(m.Called(ctx, id, tokenDigest, passwordHash, at))
}

// RunInTx runs fn against the mock itself.
func (m *MockStore) RunInTx(ctx context.Context, fn func(ctx context.Context, store identity.Store) error) error {
	return fn(ctx, m)
}
