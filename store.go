package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract the services depend on.
//
// Lookups that find nothing return an error for which IsNotFound is true.
// Save inserts records without an ID and updates the whole record otherwise;
// unique constraint violations come back as AlreadyExists errors naming the
// offending field.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	FindByResetToken(ctx context.Context, token string) (*User, error)
	FindByStatus(ctx context.Context, status UserStatus) ([]*User, error)
	FindAll(ctx context.Context, page Page) ([]*User, int, error)

	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)

	Save(ctx context.Context, user *User) (*User, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// ConsumeResetToken sets passwordHash and clears the reset fields of id
	// in one conditional write. It returns NotFound when the stored digest
	// no longer matches tokenDigest.
	ConsumeResetToken(ctx context.Context, id uuid.UUID, tokenDigest, passwordHash string, at time.Time) (*User, error)

	// RunInTx runs fn in a single unit of work. The Store passed to fn is
	// bound to it; calls made through it join the same transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}
