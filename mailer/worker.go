package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	identity "github.com/goliatone/go-identity"
)

// NewSendEmailHandler decodes TypeSendEmail tasks and delivers them
// through delivery.
func NewSendEmailHandler(delivery identity.Mailer, logger identity.Logger) asynq.Handler {
	if logger == nil {
		logger = identity.NewZapLogger(nil)
	}
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		var msg Message
		if err := json.Unmarshal(t.Payload(), &msg); err != nil {
			logger.Error("send email task payload invalid", "error", err)
			return fmt.Errorf("decode %s payload: %v: %w", TypeSendEmail, err, asynq.SkipRetry)
		}
		if msg.To == "" {
			return fmt.Errorf("%s task without recipient: %w", TypeSendEmail, asynq.SkipRetry)
		}

		if err := delivery.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
			logger.Warn("email delivery failed", "to", msg.To, "error", err)
			return err
		}
		return nil
	})
}

// Worker runs the email task handler.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

// NewWorker creates an asynq server delivering mail through delivery.
func NewWorker(redisOpt asynq.RedisClientOpt, delivery identity.Mailer, logger identity.Logger) *Worker {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		LogLevel:    asynq.InfoLevel,
	})
	mux := asynq.NewServeMux()
	mux.Handle(TypeSendEmail, NewSendEmailHandler(delivery, logger))
	return &Worker{srv: srv, mux: mux}
}

// Run processes tasks until the process receives SIGTERM or SIGINT,
// then drains in-flight tasks and returns.
func (w *Worker) Run() error {
	return w.srv.Run(w.mux)
}
