package ssh

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type scriptedExecutor struct {
	results map[string]ExecResult
	errs    map[string]error
}

func (s *scriptedExecutor) Execute(command string) (ExecResult, error) {
	if err, ok := s.errs[command]; ok {
		return ExecResult{}, err
	}
	if result, ok := s.results[command]; ok {
		return result, nil
	}
	return ExecResult{ExitStatus: 127, Stderr: "command not found"}, nil
}

func (s *scriptedExecutor) Host() string { return "test-host" }

func TestGatherFactsAllProbesSucceed(t *testing.T) {
	exec := &scriptedExecutor{results: map[string]ExecResult{
		factProbes["os"]:           {Stdout: "Ubuntu 22.04.3 LTS\n"},
		factProbes["kernel"]:       {Stdout: "5.15.0-91-generic\n"},
		factProbes["architecture"]: {Stdout: "x86_64\n"},
		factProbes["uptime"]:       {Stdout: "up 3 days, 2 hours\n"},
	}}

	facts := GatherFacts(exec, zap.NewNop())

	assert.Equal(t, "Ubuntu 22.04.3 LTS", facts.OS)
	assert.Equal(t, "5.15.0-91-generic", facts.Kernel)
	assert.Equal(t, "x86_64", facts.Architecture)
	assert.Equal(t, "up 3 days, 2 hours", facts.Uptime)
}

func TestGatherFactsFailedProbeIsIsolated(t *testing.T) {
	exec := &scriptedExecutor{
		results: map[string]ExecResult{
			factProbes["kernel"]:       {Stdout: "6.1.0-13-amd64\n"},
			factProbes["architecture"]: {Stdout: "aarch64\n"},
		},
		errs: map[string]error{
			factProbes["os"]: &CommandExecutionError{Command: factProbes["os"], Err: errors.New("session closed")},
		},
	}

	facts := GatherFacts(exec, zap.NewNop())

	assert.Equal(t, "unknown", facts.OS)
	assert.Equal(t, "6.1.0-13-amd64", facts.Kernel)
	assert.Equal(t, "aarch64", facts.Architecture)
	assert.Equal(t, "unknown", facts.Uptime, "non-zero exit reports unknown")
}

func TestErrorTaxonomyUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	var connErr error = &ConnectionError{Host: "10.0.0.5", Err: cause}
	assert.ErrorIs(t, connErr, cause)
	assert.Contains(t, connErr.Error(), "10.0.0.5")

	var authErr error = &AuthenticationError{Host: "10.0.0.5", Err: cause}
	assert.ErrorIs(t, authErr, cause)

	var execErr error = &CommandExecutionError{Command: "uname -r", Err: cause}
	assert.Contains(t, execErr.Error(), "uname -r")
}
