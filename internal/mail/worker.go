package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
)

// Sender performs the actual delivery of a finished email.
type Sender interface {
	Deliver(ctx context.Context, from string, email Email) error
}

// NewHandler returns the asynq handler for TaskSendEmail.
// It prefixes the subject and sets the sender address before delivery.
func NewHandler(sender Sender, subjectPrefix, from string) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var email Email
		if err := json.Unmarshal(task.Payload(), &email); err != nil {
			return fmt.Errorf("invalid email payload: %v: %w", err, asynq.SkipRetry)
		}
		if len(email.To) == 0 {
			return fmt.Errorf("email without recipients: %w", asynq.SkipRetry)
		}

		if subjectPrefix != "" {
			email.Subject = strings.Join([]string{subjectPrefix, email.Subject}, " ")
		}

		if err := sender.Deliver(ctx, from, email); err != nil {
			return fmt.Errorf("failed to deliver email: %w", err)
		}

		slog.Info("email delivered", "recipients", len(email.To))
		return nil
	}
}

// asynqLogger wraps slog.Logger to implement asynq.Logger
type asynqLogger struct {
	logger *slog.Logger
}

func (a *asynqLogger) Debug(args ...interface{}) { a.logger.Debug(fmt.Sprint(args...)) }
func (a *asynqLogger) Info(args ...interface{})  { a.logger.Info(fmt.Sprint(args...)) }
func (a *asynqLogger) Warn(args ...interface{})  { a.logger.Warn(fmt.Sprint(args...)) }
func (a *asynqLogger) Error(args ...interface{}) { a.logger.Error(fmt.Sprint(args...)) }

func (a *asynqLogger) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Worker consumes the mail queue.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func NewWorker(redisURL string, handler asynq.Handler, logger *slog.Logger) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{QueueName: 1},
		Logger:      &asynqLogger{logger: logger},
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskSendEmail, handler)

	return &Worker{srv: srv, mux: mux}, nil
}

// Start runs the worker in the background; Shutdown stops it.
func (w *Worker) Start() error {
	if err := w.srv.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start mail worker: %w", err)
	}
	return nil
}

func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}
