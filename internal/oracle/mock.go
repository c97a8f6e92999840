package oracle

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a deterministic Provider for tests. Responses are
// served from a queue in order; ChatFunc, when set, takes over entirely.
type MockProvider struct {
	mu       sync.Mutex
	queue    []mockReply
	requests []ChatRequest

	// ChatFunc overrides queued replies when non-nil.
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type mockReply struct {
	resp *ChatResponse
	err  error
}

// NewMockProvider creates an empty mock.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Enqueue adds a full response to the reply queue.
func (m *MockProvider) Enqueue(resp *ChatResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{resp: resp})
}

// EnqueueContent adds a plain-text response to the reply queue.
func (m *MockProvider) EnqueueContent(content string) {
	m.Enqueue(&ChatResponse{Content: content, StopReason: "stop", Model: "mock"})
}

// EnqueueError adds a transport failure to the reply queue.
func (m *MockProvider) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{err: err})
}

// Chat serves the next scripted reply.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.ChatFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, fmt.Errorf("mock provider: no scripted response for request %d", len(m.requests))
	}
	reply := m.queue[0]
	m.queue = m.queue[1:]
	if reply.err != nil {
		return nil, reply.err
	}
	return reply.resp, nil
}

// Requests returns every request seen so far.
func (m *MockProvider) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or nil.
func (m *MockProvider) LastRequest() *ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	req := m.requests[len(m.requests)-1]
	return &req
}
