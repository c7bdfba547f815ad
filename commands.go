package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const commandTimeout = 10 * time.Second

type RegisterUserMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	OnResult  func(result *AuthResult)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler runs self-service registration.
type RegisterUserHandler struct {
	auth *Authenticator
}

func NewRegisterUserHandler(auth *Authenticator) *RegisterUserHandler {
	return &RegisterUserHandler{auth: auth}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	result, err := h.auth.Register(ctx, Registration{
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Email:     event.Email,
		Password:  event.Password,
	})
	if err != nil {
		return err
	}

	if event.OnResult != nil {
		event.OnResult(result)
	}
	return nil
}

type InitializePasswordResetMessage struct {
	Email string `json:"email"`
}

func (e InitializePasswordResetMessage) Type() string { return "user.password_reset" }

// InitializePasswordResetHandler opens a reset window and mails the token.
type InitializePasswordResetHandler struct {
	resetter *PasswordResetter
}

func NewInitializePasswordResetHandler(resetter *PasswordResetter) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{resetter: resetter}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	return h.resetter.RequestReset(ctx, event.Email)
}

type FinalizePasswordResetMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

// FinalizePasswordResetHandler consumes a reset token.
type FinalizePasswordResetHandler struct {
	resetter *PasswordResetter
}

func NewFinalizePasswordResetHandler(resetter *PasswordResetter) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{resetter: resetter}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	return h.resetter.ResetPassword(ctx, event.Token, event.Password)
}
