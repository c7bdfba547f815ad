package identity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestTranslateConstraintError(t *testing.T) {
	plain := errors.New("connection reset")

	tests := []struct {
		name      string
		err       error
		wantField string
		wantSame  bool
	}{
		{
			name:      "postgres constraint name",
			err:       &pq.Error{Code: "23505", Constraint: "users_email_key"},
			wantField: FieldEmail,
		},
		{
			name:      "postgres detail",
			err:       &pq.Error{Code: "23505", Detail: "Key (phone)=(+14155550100) already exists."},
			wantField: FieldPhone,
		},
		{
			name:      "wrapped postgres error",
			err:       fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "users_username_key"}),
			wantField: FieldUsername,
		},
		{
			name:      "sqlite message",
			err:       errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"),
			wantField: FieldUsername,
		},
		{
			name:     "postgres other code",
			err:      &pq.Error{Code: "23503", Constraint: "users_email_key"},
			wantSame: true,
		},
		{
			name:     "unrelated error",
			err:      plain,
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateConstraintError(tt.err)
			if tt.wantSame {
				assert.Same(t, tt.err, got)
				return
			}

			assert.True(t, IsAlreadyExists(got))
			field, ok := AlreadyExistsField(got)
			assert.True(t, ok)
			assert.Equal(t, tt.wantField, field)
		})
	}

	assert.NoError(t, translateConstraintError(nil))
}
