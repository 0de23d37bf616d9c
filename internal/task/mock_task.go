package task

import (
	"context"
	"sync"

	"github.com/orderflow/orderflow/internal/platform/invoice"
	"github.com/orderflow/orderflow/internal/platform/mailer"
)

// MockHandler is a Handler whose behavior is set per test.
type MockHandler struct {
	mutex    sync.Mutex
	calls    []*Job
	HandleFn func(ctx context.Context, job *Job) (any, error)
}

// NewMockHandler creates a MockHandler that succeeds with "ok".
func NewMockHandler() *MockHandler {
	return &MockHandler{
		HandleFn: func(ctx context.Context, job *Job) (any, error) { return "ok", nil },
	}
}

// Handle records the job and calls HandleFn.
func (h *MockHandler) Handle(ctx context.Context, job *Job) (any, error) {
	h.mutex.Lock()
	h.calls = append(h.calls, job)
	h.mutex.Unlock()
	return h.HandleFn(ctx, job)
}

// Calls returns the jobs handled so far.
func (h *MockHandler) Calls() []*Job {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	out := make([]*Job, len(h.calls))
	copy(out, h.calls)
	return out
}

// MockSender records messages instead of delivering them.
type MockSender struct {
	mutex  sync.Mutex
	sent   []mailer.Message
	SendFn func(ctx context.Context, msg mailer.Message) error
}

// Send records msg and calls SendFn if set.
func (s *MockSender) Send(ctx context.Context, msg mailer.Message) error {
	if s.SendFn != nil {
		if err := s.SendFn(ctx, msg); err != nil {
			return err
		}
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

// Sent returns the recorded messages.
func (s *MockSender) Sent() []mailer.Message {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]mailer.Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// MockRenderer returns a fixed document or error.
type MockRenderer struct {
	Doc      []byte
	Err      error
	RenderFn func(ctx context.Context, data invoice.Data) ([]byte, error)
}

// Render implements invoice.Renderer.
func (r *MockRenderer) Render(ctx context.Context, data invoice.Data) ([]byte, error) {
	if r.RenderFn != nil {
		return r.RenderFn(ctx, data)
	}
	return r.Doc, r.Err
}

var (
	_ Handler          = (*MockHandler)(nil)
	_ mailer.Sender    = (*MockSender)(nil)
	_ invoice.Renderer = (*MockRenderer)(nil)
)
