// Package mailer holds Mailer transports for the identity flows: a log
// transport for development and an asynq backed queue for everything else.
package mailer

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	identity "github.com/goliatone/go-identity"
)

// TypeSendEmail is the asynq task type carrying a Message.
const TypeSendEmail = "email:send"

// Message is the task payload.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Enqueuer is the part of *asynq.Client the mailer uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqMailer hands messages to a queue; delivery happens in a worker.
type AsynqMailer struct {
	client Enqueuer
	opts   []asynq.Option
	logger identity.Logger
}

var _ identity.Mailer = (*AsynqMailer)(nil)

// NewAsynqMailer returns a Mailer that enqueues TypeSendEmail tasks.
func NewAsynqMailer(client Enqueuer, logger identity.Logger, opts ...asynq.Option) *AsynqMailer {
	if logger == nil {
		logger = identity.NewZapLogger(nil)
	}
	return &AsynqMailer{client: client, opts: opts, logger: logger}
}

// Send enqueues the message. An error means the task was not accepted.
func (m *AsynqMailer) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(Message{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeSendEmail, payload)
	info, err := m.client.EnqueueContext(ctx, task, m.opts...)
	if err != nil {
		m.logger.Warn("enqueue email failed", "to", to, "error", err)
		return err
	}

	if info != nil {
		m.logger.Debug("email enqueued", "to", to, "task_id", info.ID, "queue", info.Queue)
	}
	return nil
}

// LogMailer writes messages to the logger instead of delivering them.
type LogMailer struct {
	logger identity.Logger
}

var _ identity.Mailer = LogMailer{}

// NewLogMailer returns a development transport.
func NewLogMailer(logger identity.Logger) LogMailer {
	if logger == nil {
		logger = identity.NewZapLogger(nil)
	}
	return LogMailer{logger: logger}
}

func (l LogMailer) Send(ctx context.Context, to, subject, body string) error {
	l.logger.Info("email (log only)", "to", to, "subject", subject, "body", body)
	return nil
}
