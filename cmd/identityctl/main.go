package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/mailer"
)

const usage = `usage: identityctl [-env file] <command> [flags]

commands:
  migrate                                      create the users schema
  create-admin -email -password [-username] [-phone]
  issue-token -email                           print a token for an identity
  register -email -password [-first] [-last]   self-service registration
  request-reset -email                         start a password reset
  reset-password -token -password              finish a password reset
  worker                                       deliver queued email (needs IDENTITY_REDIS_ADDR)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg    *identity.Config
	zap    *zap.Logger
	logger identity.Logger
}

func run(args []string) error {
	global := flag.NewFlagSet("identityctl", flag.ContinueOnError)
	envFile := global.String("env", "", "optional .env file")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return fmt.Errorf("missing command")
	}

	cfg, err := identity.LoadConfig(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return err
	}

	zl, err := identity.NewZap(cfg.LogLevel, cfg.Environment == identity.EnvDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return err
	}
	defer func() { _ = zl.Sync() }()

	a := &app{cfg: cfg, zap: zl, logger: identity.NewZapLogger(zl)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "migrate":
		err = a.migrate(ctx)
	case "create-admin":
		err = a.createAdmin(ctx, rest)
	case "issue-token":
		err = a.issueToken(ctx, rest)
	case "register":
		err = a.register(ctx, rest)
	case "request-reset":
		err = a.requestReset(ctx, rest)
	case "reset-password":
		err = a.resetPassword(ctx, rest)
	case "worker":
		err = a.worker()
	default:
		global.Usage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		zl.Error("command failed", zap.String("command", cmd), zap.Error(err))
	}
	return err
}

type services struct {
	sink   identity.ActivitySink
	users  *identity.UserManager
	tokens identity.TokenService
	close  func() error
}

// wire resolves the signing key first so a missing secret stops every command.
func (a *app) wire(ctx context.Context) (*services, error) {
	key, err := identity.ResolveSigningKey(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	db, err := identity.OpenDB(a.cfg.DatabaseDriver, a.cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := identity.CreateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	tokens, err := identity.NewTokenService(key, a.cfg.TokenTTL, a.cfg.JWTIssuer, a.cfg.JWTAudience,
		identity.WithTokenLogger(a.logger))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	sink := identity.NewLoggerActivitySink(a.logger, "identityctl")
	users := identity.NewUserManager(
		identity.NewBunStore(db),
		identity.NewBcryptHasher(a.cfg.BcryptCost),
		identity.WithManagerLogger(a.logger),
		identity.WithManagerActivitySink(sink),
		identity.WithPhoneRegion(a.cfg.PhoneRegion),
	)

	return &services{sink: sink, users: users, tokens: tokens, close: db.Close}, nil
}

func (a *app) migrate(ctx context.Context) error {
	s, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	a.zap.Info("schema ready", zap.String("driver", a.cfg.DatabaseDriver))
	return nil
}

func (a *app) createAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	username := fs.String("username", "", "username, defaults to the email")
	phone := fs.String("phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		*username = *email
	}

	s, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	view, err := s.users.Create(ctx, identity.UserCandidate{
		Username: *username,
		Email:    *email,
		Phone:    *phone,
		Password: *password,
		Role:     identity.RoleAdmin,
		Status:   identity.UserStatusActive,
	})
	if err != nil {
		return err
	}

	a.zap.Info("admin created", zap.String("id", view.ID.String()), zap.String("email", view.Email))
	return nil
}

func (a *app) issueToken(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	email := fs.String("email", "", "identity email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	view, err := s.users.GetByEmail(ctx, *email)
	if err != nil {
		return err
	}

	token, err := s.tokens.Issue(identity.NewIdentityFromView(view))
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "login email")
	password := fs.String("password", "", "password")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	auth := identity.NewAuthenticator(s.users, s.tokens).
		WithLogger(a.logger).
		WithActivitySink(s.sink)

	return identity.NewRegisterUserHandler(auth).Execute(ctx, identity.RegisterUserMessage{
		FirstName: *first,
		LastName:  *last,
		Email:     *email,
		Password:  *password,
		OnResult: func(r *identity.AuthResult) {
			a.zap.Info("user registered", zap.String("id", r.User.ID.String()), zap.String("status", string(r.User.Status)))
			fmt.Println(r.Token)
		},
	})
}

func (a *app) requestReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("request-reset", flag.ContinueOnError)
	email := fs.String("email", "", "identity email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	var m identity.Mailer = mailer.NewLogMailer(a.logger)
	if a.cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: a.cfg.RedisAddr})
		defer client.Close()
		m = mailer.NewAsynqMailer(client, a.logger)
	}

	return identity.NewInitializePasswordResetHandler(a.resetter(s, m)).
		Execute(ctx, identity.InitializePasswordResetMessage{Email: *email})
}

func (a *app) resetPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	token := fs.String("token", "", "token from the reset mail")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	err = identity.NewFinalizePasswordResetHandler(a.resetter(s, nil)).
		Execute(ctx, identity.FinalizePasswordResetMessage{Token: *token, Password: *password})
	if err != nil {
		return err
	}

	a.zap.Info("password reset")
	return nil
}

func (a *app) resetter(s *services, m identity.Mailer) *identity.PasswordResetter {
	return identity.NewPasswordResetter(s.users, m,
		identity.WithResetTTL(a.cfg.ResetTokenTTL),
		identity.WithResetLogger(a.logger),
		identity.WithResetActivitySink(s.sink),
	)
}

func (a *app) worker() error {
	if a.cfg.RedisAddr == "" {
		return identity.ErrConfiguration("IDENTITY_REDIS_ADDR is required for the worker", nil)
	}

	w := mailer.NewWorker(asynq.RedisClientOpt{Addr: a.cfg.RedisAddr}, mailer.NewLogMailer(a.logger), a.logger)

	a.zap.Info("mail worker starting", zap.String("redis", a.cfg.RedisAddr))
	return w.Run()
}
