package agentrpc

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingFactory(counter *atomic.Int32) func() (*client.Client, error) {
	return func() (*client.Client, error) {
		counter.Add(1)
		// Constructing a client does not contact the daemon.
		return client.NewClientWithOpts(client.WithHost("tcp://127.0.0.1:2375"))
	}
}

func TestRuntimeConstructsExactlyOnceUnderConcurrency(t *testing.T) {
	var constructions atomic.Int32
	runtime := NewRuntime(countingFactory(&constructions))

	const callers = 10
	clients := make([]*client.Client, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := runtime.Client()
			require.NoError(t, err)
			clients[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), constructions.Load(), "client must be constructed exactly once")
	for i := 1; i < callers; i++ {
		assert.Same(t, clients[0], clients[i], "all callers get the same instance")
	}
}

func TestRuntimeResetForcesReconstruction(t *testing.T) {
	var constructions atomic.Int32
	runtime := NewRuntime(countingFactory(&constructions))

	first, err := runtime.Client()
	require.NoError(t, err)

	again, err := runtime.Client()
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, int32(1), constructions.Load())

	runtime.Reset()

	second, err := runtime.Client()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), constructions.Load())
}

func TestRuntimeCachedReadsSurviveConcurrentResets(t *testing.T) {
	var constructions atomic.Int32
	runtime := NewRuntime(countingFactory(&constructions))

	_, err := runtime.Client()
	require.NoError(t, err)

	const resets = 5

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c, err := runtime.Client()
				require.NoError(t, err)
				require.NotNil(t, c)
			}
		}()
	}
	for i := 0; i < resets; i++ {
		runtime.Reset()
	}
	wg.Wait()

	// Each reset can force at most one reconstruction.
	assert.LessOrEqual(t, constructions.Load(), int32(resets+1))

	c, err := runtime.Client()
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestRuntimeFactoryFailureDoesNotCache(t *testing.T) {
	var constructions atomic.Int32
	failing := true
	runtime := NewRuntime(func() (*client.Client, error) {
		constructions.Add(1)
		if failing {
			return nil, assert.AnError
		}
		return client.NewClientWithOpts(client.WithHost("tcp://127.0.0.1:2375"))
	})

	_, err := runtime.Client()
	require.Error(t, err)

	failing = false
	c, err := runtime.Client()
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, int32(2), constructions.Load(), "failed construction must not be cached")
}
