package ui

import (
	"github.com/nodeforge/nodeforge/internal/types"
)

// VerboseReporter pairs the step spinner with a scrolling output pane,
// so step transitions stay visible after the spinner moves on.
type VerboseReporter struct {
	spinner  *StepSpinner
	terminal *TerminalOutput
}

func NewVerboseReporter(host string) *VerboseReporter {
	return &VerboseReporter{
		spinner:  NewStepSpinner(host),
		terminal: NewTerminalOutput(host),
	}
}

func (r *VerboseReporter) StepStarted(host string, step types.PreparationStep) {
	r.terminal.WriteLine("starting %s", step)
	r.spinner.StepStarted(host, step)
}

func (r *VerboseReporter) StepFinished(host string, step types.PreparationStep, ok bool) {
	r.spinner.StepFinished(host, step, ok)
	if ok {
		r.terminal.WriteLine("finished %s", step)
	} else {
		r.terminal.WriteLine("failed %s", step)
	}
}
