package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// consumeResetTokenSQL only matches while the stored digest is unchanged,
// so two consumers racing on one token cannot both win.
var consumeResetTokenSQL = `UPDATE "users"
SET
	"password_hash" = ?,
	"reset_token" = NULL,
	"reset_token_expiry" = NULL,
	"updated_at" = ?
WHERE
	"id" = ?
AND "reset_token" = ?
RETURNING *;`

type users struct {
	repository.Repository[*User]
	db    *bun.DB
	idb   bun.IDB
	inTx  bool
	newID func(record *User) (uuid.UUID, error)
}

func newUsersRepository(db *bun.DB) repository.Repository[*User] {
	return repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
}

var _ Store = (*users)(nil)

// StoreOption customizes the bun store
type StoreOption func(*users)

// WithHashidIdentifiers derives record ids from the email address so the
// same account always gets the same id across environments.
func WithHashidIdentifiers() StoreOption {
	return func(u *users) {
		u.newID = func(record *User) (uuid.UUID, error) {
			return hashid.NewUUID(normalizeEmail(record.Email))
		}
	}
}

// WithIDGenerator overrides how ids are assigned on insert.
func WithIDGenerator(fn func(record *User) (uuid.UUID, error)) StoreOption {
	return func(u *users) {
		if fn != nil {
			u.newID = fn
		}
	}
}

// NewBunStore returns a Store backed by bun.
func NewBunStore(db *bun.DB, opts ...StoreOption) Store {
	repo := &users{
		Repository: newUsersRepository(db),
		db:         db,
		idb:        db,
		newID: func(*User) (uuid.UUID, error) {
			return uuid.New(), nil
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.findOne(ctx, "id", id)
}

func (a *users) FindByUsername(ctx context.Context, username string) (*User, error) {
	return a.findOne(ctx, "username", strings.TrimSpace(username))
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound("email", email)
	}

	record, err := a.Repository.GetByIdentifierTx(ctx, a.idb, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrNotFound("email", email)
		}
		return nil, err
	}
	return record, nil
}

func (a *users) FindByPhone(ctx context.Context, phone string) (*User, error) {
	return a.findOne(ctx, "phone", strings.TrimSpace(phone))
}

func (a *users) FindByResetToken(ctx context.Context, token string) (*User, error) {
	return a.findOne(ctx, "reset_token", token)
}

func (a *users) FindByStatus(ctx context.Context, status UserStatus) ([]*User, error) {
	records := []*User{}
	err := a.idb.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", status).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC").
		Scan(ctx)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (a *users) FindAll(ctx context.Context, page Page) ([]*User, int, error) {
	page = page.Normalize()
	records := []*User{}
	total, err := a.idb.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC").
		Limit(page.Size).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, 0, err
	}
	return records, total, nil
}

func (a *users) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	return a.exists(ctx, "id", id)
}

func (a *users) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return a.exists(ctx, "username", strings.TrimSpace(username))
}

func (a *users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return a.exists(ctx, "email", normalizeEmail(email))
}

func (a *users) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return a.exists(ctx, "phone", strings.TrimSpace(phone))
}

func (a *users) Save(ctx context.Context, record *User) (*User, error) {
	if record == nil {
		return nil, errors.New("user record is nil")
	}
	record.Email = normalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		return a.insert(ctx, record)
	}

	res, err := a.idb.NewUpdate().
		Model(record).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, translateConstraintError(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound("id", record.ID)
	}

	return record, nil
}

func (a *users) insert(ctx context.Context, record *User) (*User, error) {
	id, err := a.newID(record)
	if err != nil {
		return nil, fmt.Errorf("assign user id: %w", err)
	}
	record.ID = id

	created, err := a.Repository.CreateTx(ctx, a.idb, record)
	if err != nil {
		record.ID = uuid.Nil
		return nil, translateConstraintError(err)
	}
	return created, nil
}

// ConsumeResetToken swaps the password of id and clears its reset window,
// provided the stored digest still equals tokenDigest.
func (a *users) ConsumeResetToken(ctx context.Context, id uuid.UUID, tokenDigest, passwordHash string, at time.Time) (*User, error) {
	res, err := a.Repository.RawTx(ctx, a.idb, consumeResetTokenSQL, passwordHash, at.UTC(), id.String(), tokenDigest)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrNotFound("reset_token", tokenDigest)
		}
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrNotFound("reset_token", tokenDigest)
	}
	return res[0], nil
}

func (a *users) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := a.idb.NewDelete().
		Model(&User{ID: id}).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound("id", id)
	}
	return nil
}

func (a *users) RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if a.inTx {
		return fn(ctx, a)
	}

	return a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &users{
			Repository: a.Repository,
			db:         a.db,
			idb:        tx,
			inTx:       true,
			newID:      a.newID,
		})
	})
}

func (a *users) findOne(ctx context.Context, column string, value any) (*User, error) {
	if s, ok := value.(string); ok && s == "" {
		return nil, ErrNotFound(column, value)
	}

	record := &User{}
	err := a.idb.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrNotFound(column, value)
		}
		return nil, err
	}

	return record, nil
}

func (a *users) exists(ctx context.Context, column string, value any) (bool, error) {
	if s, ok := value.(string); ok && s == "" {
		return false, nil
	}

	return a.idb.NewSelect().
		Model((*User)(nil)).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Exists(ctx)
}
