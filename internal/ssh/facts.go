package ssh

import (
	"strings"

	"go.uber.org/zap"

	"github.com/nodeforge/nodeforge/internal/types"
)

const factUnknown = "unknown"

// Executor is the subset of Client the fact gatherer and the
// preparation engine depend on. Satisfied by *Client; tests substitute
// a scripted implementation.
type Executor interface {
	Execute(command string) (ExecResult, error)
	Host() string
}

// factProbes are intentionally independent shell commands. One probe
// failing must not poison the others; partial system info is more
// useful than none.
var factProbes = map[string]string{
	"os":           "cat /etc/os-release | grep PRETTY_NAME | cut -d'\"' -f2",
	"kernel":       "uname -r",
	"architecture": "uname -m",
	"uptime":       "uptime -p",
}

// GatherFacts runs the fixed probe set against the host. A probe that
// cannot be invoked or exits non-zero records "unknown" for its field.
func GatherFacts(exec Executor, logger *zap.Logger) types.HostFacts {
	probe := func(name string) string {
		result, err := exec.Execute(factProbes[name])
		if err != nil || !result.Ok() {
			logger.Debug("fact probe failed",
				zap.String("host", exec.Host()),
				zap.String("probe", name),
				zap.Error(err),
			)
			return factUnknown
		}
		value := strings.TrimSpace(result.Stdout)
		if value == "" {
			return factUnknown
		}
		return value
	}

	return types.HostFacts{
		OS:           probe("os"),
		Kernel:       probe("kernel"),
		Architecture: probe("architecture"),
		Uptime:       probe("uptime"),
	}
}
