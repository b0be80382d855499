package mocks

import (
	"context"
	"sync"

	"github.com/VitaminP8/forum/internal/mail"
)

type DeliveredEmail struct {
	From  string
	Email mail.Email
}

// MockSender stands in for the SMTP relay.
type MockSender struct {
	mu        sync.Mutex
	Delivered []DeliveredEmail
	Err       error
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

func (s *MockSender) Deliver(ctx context.Context, from string, email mail.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	s.Delivered = append(s.Delivered, DeliveredEmail{From: from, Email: email})
	return nil
}
