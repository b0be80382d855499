package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TaskSendEmail = "email:send"
	QueueName     = "mail"
)

// NewSendTask wraps an email into an asynq task.
// The task is retried up to 3 times, times out after a minute and is kept for a day.
func NewSendTask(email Email) (*asynq.Task, error) {
	payload, err := json.Marshal(email)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskSendEmail,
		payload,
		asynq.TaskID(uuid.NewString()),
		asynq.Queue(QueueName),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// QueueMailer enqueues emails for the worker and returns immediately.
type QueueMailer struct {
	client *asynq.Client
}

func NewQueueMailer(redisURL string) (*QueueMailer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &QueueMailer{client: asynq.NewClient(opt)}, nil
}

func (m *QueueMailer) Send(ctx context.Context, email Email) error {
	task, err := NewSendTask(email)
	if err != nil {
		return fmt.Errorf("failed to build email task: %w", err)
	}
	if _, err := m.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	return nil
}

func (m *QueueMailer) Close() error {
	return m.client.Close()
}
