package notification

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Notifier surfaces preparation milestones on the operator's desktop.
// Notification failures are ignored by callers; a missing notify tool
// must never fail a preparation run.
type Notifier interface {
	Send(title, message string) error
}

type DefaultNotifier struct{}

func New() *DefaultNotifier {
	return &DefaultNotifier{}
}

func (n *DefaultNotifier) Send(title, message string) error {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
		return exec.Command("osascript", "-e", script).Run()
	case "linux":
		return exec.Command("notify-send", title, message).Run()
	default:
		// No desktop notification mechanism; not an error.
		return nil
	}
}
