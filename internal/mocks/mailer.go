package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/VitaminP8/forum/internal/mail"
)

// MockMailer records every email instead of queueing it.
type MockMailer struct {
	mu     sync.Mutex
	emails map[string][]mail.Email // recipient -> emails, for assertions in tests
	fail   bool
}

func NewMockMailer() *MockMailer {
	return &MockMailer{
		emails: make(map[string][]mail.Email),
	}
}

// FailNext makes every following Send return an error.
func (m *MockMailer) FailNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = true
}

func (m *MockMailer) Send(ctx context.Context, email mail.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return errors.New("mock mailer: queue unavailable")
	}
	for _, to := range email.To {
		m.emails[to] = append(m.emails[to], email)
	}
	return nil
}

func (m *MockMailer) GetEmailsFor(address string) []mail.Email {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]mail.Email, len(m.emails[address]))
	copy(result, m.emails[address])
	return result
}
