package prepare

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nodeforge/nodeforge/internal/ssh"
	"github.com/nodeforge/nodeforge/internal/types"
)

type memoryStore struct {
	mu    sync.Mutex
	preps map[string]*types.ServerPreparation
	logs  []types.PreparationLog
}

func newMemoryStore() *memoryStore {
	return &memoryStore{preps: make(map[string]*types.ServerPreparation)}
}

func (m *memoryStore) CreatePreparation(prep *types.ServerPreparation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *prep
	m.preps[prep.ID] = &copied
	return nil
}

func (m *memoryStore) UpdatePreparation(prep *types.ServerPreparation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *prep
	m.preps[prep.ID] = &copied
	return nil
}

func (m *memoryStore) AppendLog(log *types.PreparationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memoryStore) stepLogs() []types.PreparationStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps := make([]types.PreparationStep, 0, len(m.logs))
	for _, log := range m.logs {
		steps = append(steps, log.Step)
	}
	return steps
}

// fakeHost succeeds every command unless the command contains one of
// the failure substrings.
type fakeHost struct {
	osRelease string
	failOn    []string
	mu        sync.Mutex
	executed  []string
}

func (f *fakeHost) Execute(command string) (ssh.ExecResult, error) {
	f.mu.Lock()
	f.executed = append(f.executed, command)
	f.mu.Unlock()

	if command == osReleaseProbe {
		return ssh.ExecResult{Stdout: f.osRelease}, nil
	}
	for _, substr := range f.failOn {
		if strings.Contains(command, substr) {
			return ssh.ExecResult{ExitStatus: 100, Stderr: "E: unable to locate package"}, nil
		}
	}
	return ssh.ExecResult{Stdout: "ok"}, nil
}

func (f *fakeHost) Host() string { return "fake-host" }

func (f *fakeHost) Close() error { return nil }

func TestRunCompletesFullSequence(t *testing.T) {
	store := newMemoryStore()
	engine := NewEngine(store, zap.NewNop(), 2)
	host := &fakeHost{osRelease: `PRETTY_NAME="Ubuntu 22.04.3 LTS"`}

	prep, err := engine.Run("srv-1", host, nil)
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, prep.Status)
	assert.Equal(t, types.FamilyUbuntu, prep.DetectedOS)
	assert.Empty(t, prep.ErrorMessage)
	require.NotNil(t, prep.CompletedAt)

	assert.Equal(t, []types.PreparationStep(types.StepSequence), store.stepLogs(),
		"one log row per step, in order")
}

func TestRunFailFastOnInstallDocker(t *testing.T) {
	store := newMemoryStore()
	engine := NewEngine(store, zap.NewNop(), 2)
	host := &fakeHost{
		osRelease: `PRETTY_NAME="Debian GNU/Linux 12 (bookworm)"`,
		failOn:    []string{"docker-ce"},
	}

	prep, err := engine.Run("srv-2", host, nil)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, prep.Status)
	assert.Equal(t, types.StepInstallDocker, prep.CurrentStep)
	assert.NotEmpty(t, prep.ErrorMessage)

	steps := store.stepLogs()
	assert.Equal(t, []types.PreparationStep{
		types.StepDetectOS,
		types.StepUpdatePackages,
		types.StepInstallDependencies,
		types.StepInstallDocker,
	}, steps, "start_docker and later steps must never be attempted")

	for _, cmd := range host.executed {
		assert.NotContains(t, cmd, "systemctl start docker")
	}
}

func TestRunFailsOnUnknownFamily(t *testing.T) {
	store := newMemoryStore()
	engine := NewEngine(store, zap.NewNop(), 2)
	host := &fakeHost{osRelease: "TempleOS 5.03"}

	prep, err := engine.Run("srv-3", host, nil)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, prep.Status)
	assert.Equal(t, types.FamilyUnknown, prep.DetectedOS)
	assert.Equal(t, types.StepUpdatePackages, prep.CurrentStep,
		"detect_os itself succeeds; the command lookup fails the run")
	assert.Contains(t, prep.ErrorMessage, "no command table")
}

func TestRunRecordsFailedStepLog(t *testing.T) {
	store := newMemoryStore()
	engine := NewEngine(store, zap.NewNop(), 2)
	host := &fakeHost{
		osRelease: "Fedora Linux 39",
		failOn:    []string{"upgrade"},
	}

	_, err := engine.Run("srv-4", host, nil)
	require.NoError(t, err)

	require.Len(t, store.logs, 2)
	failed := store.logs[1]
	assert.Equal(t, types.StepUpdatePackages, failed.Step)
	assert.Equal(t, "failed", failed.Status)
	assert.Contains(t, failed.Error, "exited 100")
}

func TestStartRejectsConcurrentAttemptForSameServer(t *testing.T) {
	store := newMemoryStore()
	engine := NewEngine(store, zap.NewNop(), 2)

	release := make(chan struct{})
	dial := func() (Session, error) {
		<-release
		return &fakeHost{osRelease: "Ubuntu 22.04"}, nil
	}

	ctx := context.Background()
	require.NoError(t, engine.Start(ctx, "srv-5", dial, nil))

	err := engine.Start(ctx, "srv-5", dial, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in flight")

	close(release)
	require.NoError(t, engine.Wait(ctx))

	// With the first attempt finished, a new one is allowed.
	require.NoError(t, engine.Start(ctx, "srv-5", dial, nil))
	require.NoError(t, engine.Wait(ctx))
}

func TestStartRecordsDialFailure(t *testing.T) {
	store := newMemoryStore()
	engine := NewEngine(store, zap.NewNop(), 2)

	dial := func() (Session, error) {
		return nil, &ssh.ConnectionError{Host: "10.0.0.9", Err: context.DeadlineExceeded}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, engine.Start(ctx, "srv-6", dial, nil))
	require.NoError(t, engine.Wait(ctx))

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.preps, 1)
	for _, prep := range store.preps {
		assert.Equal(t, types.StatusFailed, prep.Status)
		assert.Contains(t, prep.ErrorMessage, "10.0.0.9")
	}
}
