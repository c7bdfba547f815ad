package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persisted identity record
type User struct {
	bun.BaseModel    `bun:"table:users,alias:usr"`
	ID               uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Username         string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email            string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone            string     `bun:"phone,nullzero,unique" json:"phone,omitempty"`
	FirstName        string     `bun:"first_name" json:"first_name,omitempty"`
	LastName         string     `bun:"last_name" json:"last_name,omitempty"`
	PasswordHash     string     `bun:"password_hash,notnull" json:"-"`
	Role             UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Status           UserStatus `bun:"status,notnull" json:"status,omitempty"`
	ResetToken       string     `bun:"reset_token,nullzero" json:"-"`
	ResetTokenExpiry *time.Time `bun:"reset_token_expiry,nullzero" json:"-"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*User)(nil)

// BeforeAppendModel keeps the audit timestamps owned by the store.
func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		u.UpdatedAt = now
	case *bun.UpdateQuery:
		u.UpdatedAt = now
	}
	return nil
}

// EnsureDefaults fills role and status for records built outside the flows.
func (u *User) EnsureDefaults() {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = UserStatusInactive
	}
}

// IsActive reports whether the identity may log in
func (u *User) IsActive() bool { return u.Status == UserStatusActive }

// IsSuspended reports whether the identity is suspended
func (u *User) IsSuspended() bool { return u.Status == UserStatusSuspended }

// IsAdmin reports whether the identity holds the admin role
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// HasValidResetToken reports whether the reset window is still open at now.
func (u *User) HasValidResetToken(now time.Time) bool {
	if u.ResetToken == "" || u.ResetTokenExpiry == nil {
		return false
	}
	return now.Before(*u.ResetTokenExpiry)
}

// ClearResetToken closes the reset window.
func (u *User) ClearResetToken() {
	u.ResetToken = ""
	u.ResetTokenExpiry = nil
}

// View returns the public projection of the record.
func (u *User) View() *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserView is what the services hand out. It never carries
// the password hash or the reset token.
type UserView struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	Role      UserRole   `json:"user_role"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// UserCandidate carries the fields used to create or update an identity.
// Password, Role and Status are only read on create; empty Role and
// Status default to user and inactive.
type UserCandidate struct {
	Username  string
	Email     string
	Phone     string
	FirstName string
	LastName  string
	Password  string
	Role      UserRole
	Status    UserStatus
}

// Page selects a slice of a listing. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// DefaultPageSize is used when a Page has no size
var DefaultPageSize = 20

// MaxPageSize caps the page size a caller can ask for
var MaxPageSize = 200

// Normalize returns a page with sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset is the number of records to skip
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}

// PageResult is one page of a listing in store order.
type PageResult[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Number int `json:"page"`
	Size   int `json:"size"`
}
