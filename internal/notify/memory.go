package notify

import (
	"context"
	"errors"
	"sync"
)

// MemorySink collects delivered notifications in memory. Used by tests
// and by local runs without a configured delivery channel.
type MemorySink struct {
	mu    sync.Mutex
	admin []AdminNotification
	email []EmailNotification
	fail  int
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// FailNext makes the next n deliveries return an error.
func (s *MemorySink) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = n
}

func (s *MemorySink) DeliverAdmin(ctx context.Context, n AdminNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("notify: injected delivery failure")
	}
	s.admin = append(s.admin, n)
	return nil
}

func (s *MemorySink) DeliverEmail(ctx context.Context, n EmailNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("notify: injected delivery failure")
	}
	s.email = append(s.email, n)
	return nil
}

// Admin returns a copy of delivered in-app notifications.
func (s *MemorySink) Admin() []AdminNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AdminNotification, len(s.admin))
	copy(out, s.admin)
	return out
}

// Email returns a copy of delivered email notifications.
func (s *MemorySink) Email() []EmailNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EmailNotification, len(s.email))
	copy(out, s.email)
	return out
}
