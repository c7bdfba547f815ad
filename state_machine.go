package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_USER_STATE_TRANSITION"

// TransitionPolicy decides whether a status change is allowed. A nil
// return allows it.
type TransitionPolicy func(from, to UserStatus) error

// AllowAllTransitions is the default policy: every known status can be
// reached from any other.
func AllowAllTransitions(from, to UserStatus) error {
	return nil
}

// ErrInvalidTransition is returned by guarded policies and for unknown targets.
func ErrInvalidTransition(from, to UserStatus) *goerrors.Error {
	return goerrors.New("invalid user state transition", goerrors.CategoryValidation).
		WithTextCode(textCodeInvalidTransition).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"from": string(from), "to": string(to)})
}

// IsInvalidTransition reports errors produced by a rejected transition.
func IsInvalidTransition(err error) bool { return hasTextCode(err, textCodeInvalidTransition) }

// UserStateMachine owns the single transition function for user status.
// It only mutates the record; callers persist it.
//
// Apply returns the status change event without publishing it, or nil when
// the status did not change. Callers that persist the record publish the
// event once the write is committed. Transition applies and publishes
// straight away.
type UserStateMachine interface {
	Apply(actor ActorRef, user *User, target UserStatus) (*ActivityEvent, error)
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus) error
	CurrentStatus(user *User) UserStatus
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*userStateMachine)

// WithTransitionPolicy replaces the allow-all policy.
func WithTransitionPolicy(policy TransitionPolicy) StateMachineOption {
	return func(sm *userStateMachine) {
		if policy != nil {
			sm.policy = policy
		}
	}
}

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *userStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewUserStateMachine returns the default implementation.
func NewUserStateMachine(opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		policy:       AllowAllTransitions,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type userStateMachine struct {
	policy       TransitionPolicy
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

func (sm *userStateMachine) Apply(actor ActorRef, user *User, target UserStatus) (*ActivityEvent, error) {
	if user == nil {
		return nil, ErrInvalidTransition("", target).WithMetadata(map[string]any{
			"reason": "user is nil",
		})
	}

	user.EnsureDefaults()
	from := user.Status

	if !target.IsValid() {
		return nil, ErrInvalidTransition(from, target)
	}

	if err := sm.policy(from, target); err != nil {
		return nil, err
	}

	if from == target {
		return nil, nil
	}

	user.Status = target

	return &ActivityEvent{
		EventType:  ActivityEventUserStatusChanged,
		Actor:      actor,
		UserID:     user.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		OccurredAt: sm.now(),
	}, nil
}

func (sm *userStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus) error {
	event, err := sm.Apply(actor, user, target)
	if err != nil {
		return err
	}
	if event != nil {
		sm.publish(ctx, *event)
	}
	return nil
}

// publish sends event to the machine's sink.
func (sm *userStateMachine) publish(ctx context.Context, event ActivityEvent) {
	recordActivity(ctx, sm.activitySink, sm.logger, sm.now, event)
}

func (sm *userStateMachine) CurrentStatus(user *User) UserStatus {
	if user == nil {
		return ""
	}
	user.EnsureDefaults()
	return user.Status
}
