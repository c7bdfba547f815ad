package identity

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNotFound           = "IDENTITY_NOT_FOUND"
	TextCodeAlreadyExists      = "IDENTITY_ALREADY_EXISTS"
	TextCodeInvalidIdentity    = "INVALID_IDENTITY"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeTokenInvalid       = "TOKEN_INVALID"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeConfiguration      = "CONFIGURATION_ERROR"
	TextCodePersistence        = "PERSISTENCE_ERROR"
	TextCodeResetTokenInvalid  = "RESET_TOKEN_INVALID"
	TextCodeResetTokenExpired  = "RESET_TOKEN_EXPIRED"
	TextCodeMailDispatch       = "MAIL_DISPATCH_FAILED"
	TextCodeAccessDenied       = "ACCESS_DENIED"
)

// Fields named by ErrAlreadyExists
const (
	FieldUsername = "username"
	FieldEmail    = "email"
	FieldPhone    = "phone"
)

// ErrNotFound is returned when no identity matches the lookup.
func ErrNotFound(by string, value any) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("identity not found by %s", by), goerrors.CategoryNotFound).
		WithTextCode(TextCodeNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"by": by, "value": fmt.Sprint(value)})
}

// ErrAlreadyExists is returned when field is held by another identity.
func ErrAlreadyExists(field string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("%s already exists", field), goerrors.CategoryConflict).
		WithTextCode(TextCodeAlreadyExists).
		WithCode(goerrors.CodeConflict).
		WithMetadata(map[string]any{"field": field})
}

// ErrInvalidCredentials never says which half of the pair was wrong.
func ErrInvalidCredentials() *goerrors.Error {
	return goerrors.New("invalid email or password", goerrors.CategoryAuth).
		WithTextCode(TextCodeInvalidCredentials).
		WithCode(goerrors.CodeUnauthorized)
}

func ErrTokenInvalid(cause error) *goerrors.Error {
	if cause == nil {
		return goerrors.New("token is invalid", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenInvalid).
			WithCode(goerrors.CodeUnauthorized)
	}
	return goerrors.Wrap(cause, goerrors.CategoryAuth, "token is invalid").
		WithTextCode(TextCodeTokenInvalid).
		WithCode(goerrors.CodeUnauthorized)
}

func ErrTokenExpired() *goerrors.Error {
	return goerrors.New("token is expired", goerrors.CategoryAuth).
		WithTextCode(TextCodeTokenExpired).
		WithCode(goerrors.CodeUnauthorized)
}

// ErrConfiguration marks a misconfiguration that must stop the service from starting.
func ErrConfiguration(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryInternal).
		WithTextCode(TextCodeConfiguration).
		WithCode(goerrors.CodeInternal)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrPersistence hides an unexpected store failure behind a stable kind.
func ErrPersistence(cause error, operation string) *goerrors.Error {
	return goerrors.Wrap(cause, goerrors.CategoryInternal, "identity store failure").
		WithTextCode(TextCodePersistence).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{"operation": operation})
}

func ErrInvalidIdentity(cause error) *goerrors.Error {
	return goerrors.Wrap(cause, goerrors.CategoryValidation, "invalid identity").
		WithTextCode(TextCodeInvalidIdentity).
		WithCode(goerrors.CodeBadRequest)
}

func ErrResetTokenInvalid() *goerrors.Error {
	return goerrors.New("invalid password reset token", goerrors.CategoryValidation).
		WithTextCode(TextCodeResetTokenInvalid).
		WithCode(goerrors.CodeBadRequest)
}

func ErrResetTokenExpired() *goerrors.Error {
	return goerrors.New("password reset token has expired", goerrors.CategoryValidation).
		WithTextCode(TextCodeResetTokenExpired).
		WithCode(goerrors.CodeBadRequest)
}

// ErrMailDispatch reports a notification that could not be handed to the mailer.
// The state change that preceded it is kept.
func ErrMailDispatch(cause error, to string) *goerrors.Error {
	return goerrors.Wrap(cause, goerrors.CategoryOperation, "failed to dispatch mail").
		WithTextCode(TextCodeMailDispatch).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{"to": to})
}

func ErrAccessDenied(action Action) *goerrors.Error {
	return goerrors.New("access denied", goerrors.CategoryAuthz).
		WithTextCode(TextCodeAccessDenied).
		WithCode(goerrors.CodeForbidden).
		WithMetadata(map[string]any{"action": string(action)})
}

func IsNotFound(err error) bool           { return hasTextCode(err, TextCodeNotFound) }
func IsAlreadyExists(err error) bool      { return hasTextCode(err, TextCodeAlreadyExists) }
func IsInvalidCredentials(err error) bool { return hasTextCode(err, TextCodeInvalidCredentials) }
func IsTokenInvalid(err error) bool       { return hasTextCode(err, TextCodeTokenInvalid) }
func IsTokenExpired(err error) bool       { return hasTextCode(err, TextCodeTokenExpired) }
func IsConfigurationError(err error) bool { return hasTextCode(err, TextCodeConfiguration) }
func IsPersistenceError(err error) bool   { return hasTextCode(err, TextCodePersistence) }
func IsValidationError(err error) bool    { return hasTextCode(err, TextCodeInvalidIdentity) }
func IsResetTokenInvalid(err error) bool  { return hasTextCode(err, TextCodeResetTokenInvalid) }
func IsResetTokenExpired(err error) bool  { return hasTextCode(err, TextCodeResetTokenExpired) }
func IsMailDispatchError(err error) bool  { return hasTextCode(err, TextCodeMailDispatch) }
func IsAccessDenied(err error) bool       { return hasTextCode(err, TextCodeAccessDenied) }

// AlreadyExistsField returns the conflicting field of an AlreadyExists error.
func AlreadyExistsField(err error) (string, bool) {
	rich := findTextCode(err, TextCodeAlreadyExists)
	if rich == nil || rich.Metadata == nil {
		return "", false
	}
	field, ok := rich.Metadata["field"].(string)
	return field, ok
}

// isKnownKind reports errors already classified by this package,
// which must pass through service boundaries untouched.
func isKnownKind(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	switch rich.TextCode {
	case TextCodeNotFound, TextCodeAlreadyExists, TextCodeInvalidIdentity,
		TextCodeInvalidCredentials, TextCodeTokenInvalid, TextCodeTokenExpired,
		TextCodeConfiguration, TextCodePersistence, TextCodeResetTokenInvalid,
		TextCodeResetTokenExpired, TextCodeMailDispatch, TextCodeAccessDenied:
		return true
	}
	return false
}

func hasTextCode(err error, code string) bool {
	return findTextCode(err, code) != nil
}

func findTextCode(err error, code string) *goerrors.Error {
	for err != nil {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			return nil
		}
		if rich.TextCode == code {
			return rich
		}
		err = rich.Source
	}
	return nil
}
