package prepare

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/nodeforge/nodeforge/internal/ssh"
	"github.com/nodeforge/nodeforge/internal/types"
)

// Store persists preparation state. Implemented by db.PostgresDB.
type Store interface {
	CreatePreparation(*types.ServerPreparation) error
	UpdatePreparation(*types.ServerPreparation) error
	AppendLog(*types.PreparationLog) error
}

// Session is an established remote session the engine can run commands
// on and eventually close.
type Session interface {
	ssh.Executor
	Close() error
}

// Reporter receives step progress, typically a terminal spinner. A nil
// Reporter is allowed.
type Reporter interface {
	StepStarted(host string, step types.PreparationStep)
	StepFinished(host string, step types.PreparationStep, ok bool)
}

// Engine drives preparation runs. Starting a run is non-blocking for
// the caller; runs for different servers proceed concurrently up to
// the worker bound, while steps within one run are strictly
// sequential. The engine holds no cross-server mutable state beyond
// the in-flight guard.
type Engine struct {
	store    Store
	logger   *zap.Logger
	workers  *semaphore.Weighted
	inFlight inFlightSet
	running  sync.WaitGroup
}

func NewEngine(store Store, logger *zap.Logger, maxConcurrent int64) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &Engine{
		store:    store,
		logger:   logger,
		workers:  semaphore.NewWeighted(maxConcurrent),
		inFlight: newInFlightSet(),
	}
}

// Start launches a preparation run for the server in the background.
// It returns immediately; the caller observes progress through the
// store. At most one attempt per server may be in flight.
func (e *Engine) Start(ctx context.Context, serverID string, dial func() (Session, error), reporter Reporter) error {
	if !e.inFlight.add(serverID) {
		return fmt.Errorf("preparation already in flight for server %s", serverID)
	}

	e.running.Add(1)
	go func() {
		defer e.running.Done()
		defer e.inFlight.remove(serverID)

		if err := e.workers.Acquire(ctx, 1); err != nil {
			e.logger.Warn("preparation never started",
				zap.String("server_id", serverID),
				zap.Error(err),
			)
			return
		}
		defer e.workers.Release(1)

		session, err := dial()
		if err != nil {
			e.recordDialFailure(serverID, err)
			return
		}
		defer session.Close()

		if _, err := e.Run(serverID, session, reporter); err != nil {
			e.logger.Error("preparation run aborted",
				zap.String("server_id", serverID),
				zap.Error(err),
			)
		}
	}()

	return nil
}

// Wait blocks until every started run has finished or the context is
// cancelled.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the full step sequence against an established session.
// Step failures are recorded in the store and reflected in the returned
// preparation; the returned error is reserved for store failures. This
// is the synchronous core that Start dispatches to.
func (e *Engine) Run(serverID string, exec ssh.Executor, reporter Reporter) (*types.ServerPreparation, error) {
	prep := &types.ServerPreparation{
		ID:        uuid.NewString(),
		ServerID:  serverID,
		Status:    types.StatusPending,
		StartedAt: time.Now().UTC(),
	}

	if err := e.store.CreatePreparation(prep); err != nil {
		return nil, err
	}

	prep.Status = types.StatusInProgress

	for _, step := range types.StepSequence {
		prep.CurrentStep = step
		if err := e.store.UpdatePreparation(prep); err != nil {
			return nil, err
		}

		if reporter != nil {
			reporter.StepStarted(exec.Host(), step)
		}

		var output string
		var stepErr error
		if step == types.StepDetectOS {
			output, stepErr = e.detectOS(prep, exec)
		} else {
			output, stepErr = e.runStep(prep, exec, step)
		}

		if logErr := e.appendLog(prep, step, output, stepErr); logErr != nil {
			return nil, logErr
		}

		if reporter != nil {
			reporter.StepFinished(exec.Host(), step, stepErr == nil)
		}

		// Fail fast: later steps depend on the environment this one
		// was supposed to produce.
		if stepErr != nil {
			e.logger.Warn("preparation step failed",
				zap.String("server_id", serverID),
				zap.String("step", string(step)),
				zap.Error(stepErr),
			)
			return prep, e.finish(prep, types.StatusFailed, stepErr.Error())
		}
	}

	e.logger.Info("preparation completed",
		zap.String("server_id", serverID),
		zap.String("os_family", string(prep.DetectedOS)),
	)
	return prep, e.finish(prep, types.StatusCompleted, "")
}

func (e *Engine) detectOS(prep *types.ServerPreparation, exec ssh.Executor) (string, error) {
	result, err := exec.Execute(osReleaseProbe)
	if err != nil {
		return "", err
	}
	if !result.Ok() {
		return result.Stdout, fmt.Errorf("os-release probe exited %d: %s",
			result.ExitStatus, strings.TrimSpace(result.Stderr))
	}

	prep.DetectedOS = ClassifyOS(result.Stdout)
	if err := e.store.UpdatePreparation(prep); err != nil {
		return result.Stdout, err
	}

	return result.Stdout, nil
}

func (e *Engine) runStep(prep *types.ServerPreparation, exec ssh.Executor, step types.PreparationStep) (string, error) {
	commands, ok := CommandsFor(prep.DetectedOS, step)
	if !ok {
		return "", fmt.Errorf("no command table for OS family %q", prep.DetectedOS)
	}

	var output strings.Builder
	for _, command := range commands {
		result, err := exec.Execute(command)
		if err != nil {
			return output.String(), err
		}

		output.WriteString(result.Stdout)
		if result.Stderr != "" {
			output.WriteString(result.Stderr)
		}

		if !result.Ok() {
			return output.String(), fmt.Errorf("command %q exited %d: %s",
				command, result.ExitStatus, strings.TrimSpace(result.Stderr))
		}
	}

	return output.String(), nil
}

// appendLog records one step attempt before the engine decides whether
// to continue, so the audit trail is complete even on failure.
func (e *Engine) appendLog(prep *types.ServerPreparation, step types.PreparationStep, output string, stepErr error) error {
	log := &types.PreparationLog{
		ID:            uuid.NewString(),
		ServerID:      prep.ServerID,
		PreparationID: prep.ID,
		Step:          step,
		Status:        "success",
		Message:       fmt.Sprintf("step %s completed", step),
		Output:        output,
		Timestamp:     time.Now().UTC(),
	}
	if stepErr != nil {
		log.Status = "failed"
		log.Message = fmt.Sprintf("step %s failed", step)
		log.Error = stepErr.Error()
	}
	return e.store.AppendLog(log)
}

func (e *Engine) finish(prep *types.ServerPreparation, status types.PreparationStatus, errMsg string) error {
	now := time.Now().UTC()
	prep.Status = status
	prep.CompletedAt = &now
	prep.ErrorMessage = errMsg
	return e.store.UpdatePreparation(prep)
}

func (e *Engine) recordDialFailure(serverID string, dialErr error) {
	now := time.Now().UTC()
	prep := &types.ServerPreparation{
		ID:           uuid.NewString(),
		ServerID:     serverID,
		Status:       types.StatusFailed,
		StartedAt:    now,
		CompletedAt:  &now,
		ErrorMessage: dialErr.Error(),
	}
	if err := e.store.CreatePreparation(prep); err != nil {
		e.logger.Error("failed to record dial failure",
			zap.String("server_id", serverID),
			zap.Error(err),
		)
	}
}

type inFlightSet struct {
	mu      *sync.Mutex
	servers map[string]struct{}
}

func newInFlightSet() inFlightSet {
	return inFlightSet{
		mu:      &sync.Mutex{},
		servers: make(map[string]struct{}),
	}
}

func (s inFlightSet) add(serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.servers[serverID]; exists {
		return false
	}
	s.servers[serverID] = struct{}{}
	return true
}

func (s inFlightSet) remove(serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.servers, serverID)
}
