package generation

import (
	"context"
	"sync"
)

// fakeProvider is a scriptable Provider for tests.
type fakeProvider struct {
	name       string
	configured bool
	text       string
	err        error

	mu    sync.Mutex
	calls []Request
}

func (f *fakeProvider) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) Generate(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.text, f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
