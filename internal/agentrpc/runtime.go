package agentrpc

import (
	"sync"
	"sync/atomic"

	"github.com/docker/docker/client"
)

// defaultDockerFactory builds the engine client from the environment
// with API version negotiation, the same way every other Docker
// consumer in this codebase does.
func defaultDockerFactory() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

// Runtime is the process-wide handle to the host's container engine.
// The underlying client is created lazily on first use and exactly
// once even under concurrent first access; once constructed, readers
// load the cached client atomically without taking the mutex. It is
// injected into request handlers instead of living in a package
// global, so tests can substitute the factory and reset freely.
type Runtime struct {
	mu      sync.Mutex
	handle  atomic.Pointer[client.Client]
	factory func() (*client.Client, error)
}

func NewRuntime(factory func() (*client.Client, error)) *Runtime {
	if factory == nil {
		factory = defaultDockerFactory
	}
	return &Runtime{factory: factory}
}

// Client returns the shared engine client, constructing it on first
// call. A construction failure leaves the handle empty so the next
// caller retries.
func (r *Runtime) Client() (*client.Client, error) {
	if c := r.handle.Load(); c != nil {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.handle.Load(); c != nil {
		return c, nil
	}

	c, err := r.factory()
	if err != nil {
		return nil, err
	}
	r.handle.Store(c)
	return c, nil
}

// Reset tears down the cached client so the next access re-creates it.
// Used for test isolation and recovery after an engine restart.
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.handle.Swap(nil); c != nil {
		c.Close()
	}
}
