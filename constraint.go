package identity

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// translateConstraintError maps unique violations raised by the database
// into the same AlreadyExists kind the availability checks produce.
func translateConstraintError(err error) error {
	if err == nil {
		return nil
	}
	if field, ok := uniqueViolationField(err); ok {
		return ErrAlreadyExists(field)
	}
	return err
}

func uniqueViolationField(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != pqUniqueViolation {
			return "", false
		}
		if column := columnFromConstraint(pqErr.Constraint); column != "" {
			return fieldForColumn(column), true
		}
		return fieldForColumn(columnFromDetail(pqErr.Detail)), true
	}

	msg := err.Error()
	const sqliteMarker = "UNIQUE constraint failed:"
	if i := strings.Index(msg, sqliteMarker); i >= 0 {
		rest := strings.TrimSpace(msg[i+len(sqliteMarker):])
		if j := strings.IndexAny(rest, " ,"); j >= 0 {
			rest = rest[:j]
		}
		if k := strings.LastIndex(rest, "."); k >= 0 {
			rest = rest[k+1:]
		}
		return fieldForColumn(rest), true
	}

	return "", false
}

// columnFromConstraint reads postgres default names such as users_email_key.
func columnFromConstraint(constraint string) string {
	if constraint == "" {
		return ""
	}
	c := strings.TrimPrefix(constraint, "users_")
	c = strings.TrimSuffix(c, "_key")
	if c == constraint {
		return ""
	}
	return c
}

// columnFromDetail reads "Key (email)=(x) already exists."
func columnFromDetail(detail string) string {
	start := strings.Index(detail, "Key (")
	if start < 0 {
		return ""
	}
	rest := detail[start+len("Key ("):]
	end := strings.Index(rest, ")")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func fieldForColumn(column string) string {
	switch strings.ToLower(strings.TrimSpace(column)) {
	case "username":
		return FieldUsername
	case "email":
		return FieldEmail
	case "phone":
		return FieldPhone
	case "":
		return "unknown"
	default:
		return column
	}
}
