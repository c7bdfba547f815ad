package identity

import "strings"

// UserIdentity adapts a User into the Identity interface.
type UserIdentity struct {
	user *User
}

var _ Identity = UserIdentity{}

// NewIdentityFromUser returns an Identity adapter for the provided user.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user}
}

// ID returns the user's ID as a string.
func (u UserIdentity) ID() string {
	if u.user == nil {
		return ""
	}
	return u.user.ID.String()
}

// Username returns the user's username.
func (u UserIdentity) Username() string {
	if u.user == nil {
		return ""
	}
	return u.user.Username
}

// Email returns the login principal.
func (u UserIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

// Role returns the user's role.
func (u UserIdentity) Role() UserRole {
	if u.user == nil {
		return ""
	}
	return u.user.Role
}

// Status returns the user's lifecycle status.
func (u UserIdentity) Status() UserStatus {
	if u.user == nil {
		return ""
	}
	return u.user.Status
}

// PasswordHash returns the stored credential.
func (u UserIdentity) PasswordHash() string {
	if u.user == nil {
		return ""
	}
	return u.user.PasswordHash
}

// Authorities derives the granted authorities from the role.
func (u UserIdentity) Authorities() []string {
	if u.user == nil || u.user.Role == "" {
		return nil
	}
	return []string{"ROLE_" + strings.ToUpper(string(u.user.Role))}
}

// NewIdentityFromView adapts a UserView. The resulting identity carries no
// credential.
func NewIdentityFromView(view *UserView) Identity {
	if view == nil {
		return nil
	}
	return UserIdentity{user: &User{
		ID:        view.ID,
		Username:  view.Username,
		Email:     view.Email,
		Phone:     view.Phone,
		FirstName: view.FirstName,
		LastName:  view.LastName,
		Role:      view.Role,
		Status:    view.Status,
		CreatedAt: view.CreatedAt,
		UpdatedAt: view.UpdatedAt,
	}}
}
