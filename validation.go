package identity

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[+]?[0-9]{8,15}$`)
)

// Validate checks the record invariants carried by every stored identity.
func (u *User) Validate() error {
	if err := u.validateProfile(); err != nil {
		return err
	}
	if err := validation.Validate(u.PasswordHash, validation.Required); err != nil {
		return ErrInvalidIdentity(validation.Errors{"password_hash": err})
	}
	return nil
}

func (u *User) validateProfile() error {
	err := validation.ValidateStruct(u,
		validation.Field(&u.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&u.Email, validation.Required, validation.Length(0, 100), validation.Match(emailPattern)),
		validation.Field(&u.Phone, validation.Length(0, 20), validation.Match(phonePattern)),
		validation.Field(&u.FirstName, validation.Length(0, 100)),
		validation.Field(&u.LastName, validation.Length(0, 100)),
		validation.Field(&u.Role, validation.Required, validation.By(func(value any) error {
			if r, _ := value.(UserRole); !r.IsValid() {
				return errors.New("must be a known role")
			}
			return nil
		})),
		validation.Field(&u.Status, validation.Required, validation.By(func(value any) error {
			if s, _ := value.(UserStatus); !s.IsValid() {
				return errors.New("must be a known status")
			}
			return nil
		})),
	)
	if err != nil {
		return ErrInvalidIdentity(err)
	}
	return nil
}

func validatePassword(password string) error {
	err := validation.Validate(password, validation.Required, validation.Length(8, 50))
	if err != nil {
		return ErrInvalidIdentity(validation.Errors{"password": err})
	}
	return nil
}

// NormalizePhone returns the E.164 form of raw when it parses as a valid
// number for region, otherwise the trimmed input.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	num, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
