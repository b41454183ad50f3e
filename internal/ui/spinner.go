package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/nodeforge/nodeforge/internal/types"
)

// StepSpinner shows per-host preparation progress. It satisfies the
// engine's Reporter interface.
type StepSpinner struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	host    string
	current string
}

func NewStepSpinner(host string) *StepSpinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Prefix = fmt.Sprintf("[%s] ", host)
	return &StepSpinner{
		spinner: s,
		host:    host,
	}
}

func (s *StepSpinner) Start(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = step
	s.spinner.Suffix = fmt.Sprintf(" %s", step)
	s.spinner.Start()
}

func (s *StepSpinner) Stop(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spinner.Stop()
	if success {
		fmt.Printf("[%s] ✅ %s\n", s.host, s.current)
	} else {
		fmt.Printf("[%s] ❌ %s\n", s.host, s.current)
	}
}

func (s *StepSpinner) GetCurrentStep() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// StepStarted implements prepare.Reporter.
func (s *StepSpinner) StepStarted(host string, step types.PreparationStep) {
	s.Start(string(step))
}

// StepFinished implements prepare.Reporter.
func (s *StepSpinner) StepFinished(host string, step types.PreparationStep, ok bool) {
	s.Stop(ok)
}
