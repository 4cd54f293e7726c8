package outcome

import (
	"errors"
	"fmt"
	"log/slog"

	"swisctl/pkg/models"
)

// Status is the final result of a run; its value is the process exit code.
type Status int

const (
	StatusOK                Status = 0
	StatusClientUnavailable Status = 1
	StatusSessionFailed     Status = 2
	StatusResolutionFailed  Status = 3
	StatusActionFailed      Status = 4
	StatusGroupLookupFailed Status = 5
	StatusGroupAddFailed    Status = 6
	StatusAttributesFailed  Status = 7
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusClientUnavailable:
		return "client unavailable"
	case StatusSessionFailed:
		return "session failed"
	case StatusResolutionFailed:
		return "entity not found"
	case StatusActionFailed:
		return "action failed"
	case StatusGroupLookupFailed:
		return "group not found"
	case StatusGroupAddFailed:
		return "group membership failed"
	case StatusAttributesFailed:
		return "custom properties failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Outcome accumulates step results for one run.
type Outcome struct {
	Action  models.ActionKind
	Host    string
	Results []models.ActionResult
	Status  Status
}

// New starts an outcome for action on host.
func New(action models.ActionKind, host string) *Outcome {
	return &Outcome{Action: action, Host: host}
}

// Abort builds an outcome that failed before any action step ran.
func Abort(action models.ActionKind, host string, status Status, step string, err error) *Outcome {
	o := New(action, host)
	o.Fail(status, step, err)
	return o
}

// Pass records a successful step.
func (o *Outcome) Pass(step, message string) {
	o.Results = append(o.Results, models.ActionResult{Step: step, OK: true, Message: message})
}

// Fail records a failed step. The first failure decides the status.
func (o *Outcome) Fail(status Status, step string, err error) {
	o.Results = append(o.Results, models.ActionResult{Step: step, Fatal: true, Message: errString(err)})
	if o.Status == StatusOK {
		o.Status = status
	}
}

// Warn records a failed best-effort step; the status is left alone.
func (o *Outcome) Warn(step string, err error) {
	o.Results = append(o.Results, models.ActionResult{Step: step, Message: errString(err)})
}

// Failed reports whether a fatal step has failed.
func (o *Outcome) Failed() bool { return o.Status != StatusOK }

// Attempted reports whether step was recorded at all.
func (o *Outcome) Attempted(step string) bool {
	for _, r := range o.Results {
		if r.Step == step {
			return true
		}
	}
	return false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ExitError carries a non-zero status to main. The step results have already
// been logged when it is returned.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Code extracts the exit code from an error returned by Report (0 for nil).
func Code(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return int(StatusClientUnavailable)
}

// Reporter turns an Outcome into the run's final log lines and exit status.
type Reporter struct {
	logger *slog.Logger
}

func NewReporter(logger *slog.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// Report logs every step and the final status, and returns an *ExitError
// unless the run succeeded.
func (r *Reporter) Report(o *Outcome) error {
	for i, res := range o.Results {
		attrs := []any{"component", "OutcomeReporter", "index", i, "step", res.Step, "ok", res.OK}
		if res.Message != "" {
			attrs = append(attrs, "message", res.Message)
		}
		switch {
		case res.OK:
			r.logger.Info("Step passed", attrs...)
		case res.Fatal:
			r.logger.Error("Step failed", attrs...)
		default:
			r.logger.Warn("Step failed (non-fatal)", attrs...)
		}
	}

	r.logger.Info("Run finished",
		"component", "OutcomeReporter",
		"action", o.Action,
		"host", o.Host,
		"status", o.Status.String(),
		"exit_code", int(o.Status),
	)
	if o.Status == StatusOK {
		return nil
	}
	return &ExitError{Code: int(o.Status)}
}
