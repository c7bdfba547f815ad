package identity

import (
	"context"

	"github.com/google/uuid"
)

// Action names an operation guarded by the policy.
type Action string

const (
	ActionRead           Action = "read"
	ActionUpdate         Action = "update"
	ActionChangePassword Action = "change-password"
	ActionList           Action = "list"
	ActionDelete         Action = "delete"
	ActionLookupByEmail  Action = "lookup-by-email"
	ActionCreate         Action = "create"
	ActionActivate       Action = "activate"
	ActionSuspend        Action = "suspend"
)

// selfActions may be performed by a user on their own identity.
var selfActions = map[Action]struct{}{
	ActionRead:           {},
	ActionUpdate:         {},
	ActionChangePassword: {},
}

// Allow decides whether callerRole/callerID may perform action on targetID.
// Admins may do everything. Everyone else only acts on themselves, and
// only for the self actions.
func Allow(callerRole UserRole, callerID, targetID uuid.UUID, action Action) bool {
	if callerRole == RoleAdmin {
		return true
	}
	if callerID == uuid.Nil || callerID != targetID {
		return false
	}
	_, ok := selfActions[action]
	return ok
}

// Authorizer applies Allow to the live record behind a principal, so a
// suspended or inactive account is denied even with a valid token.
type Authorizer struct {
	users  *UserManager
	logger Logger
}

// NewAuthorizer returns an Authorizer resolving callers through users.
func NewAuthorizer(users *UserManager) *Authorizer {
	return &Authorizer{users: users, logger: defLogger{}}
}

func (a *Authorizer) WithLogger(logger Logger) *Authorizer {
	a.logger = normalizeLogger(logger)
	return a
}

// Authorize returns nil when principal may perform action on targetID,
// an AccessDenied error when it may not.
func (a *Authorizer) Authorize(ctx context.Context, principal *Principal, targetID uuid.UUID, action Action) error {
	if principal == nil || principal.Subject == "" {
		return ErrAccessDenied(action)
	}

	caller, err := a.users.GetByEmail(ctx, principal.Subject)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccessDenied(action)
		}
		return err
	}

	if caller.Status != UserStatusActive {
		a.logger.Info("access denied for non active caller", "caller_id", caller.ID, "status", caller.Status, "action", action)
		return ErrAccessDenied(action)
	}

	if !Allow(caller.Role, caller.ID, targetID, action) {
		a.logger.Info("access denied", "caller_id", caller.ID, "target_id", targetID, "action", action)
		return ErrAccessDenied(action)
	}

	return nil
}
