package manager

import (
	"errors"
	"fmt"
)

// Step names the part of an action that failed.
type Step string

const (
	StepCredentials Step = "credentials"
	StepMirror      Step = "mirror"
	StepSchedule    Step = "schedule"
	StepJob         Step = "cronjob"
	StepHook        Step = "completion hook"
	StepCheck       Step = "health check"
	StepSettings    Step = "settings"
	StepSettle      Step = "settling delay"
)

// StepError ties an error to the step that produced it.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepErr(step Step, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}

// FailedStep returns the step of the first StepError in err's chain.
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}

// ErrNoPrompter is returned when credentials are needed but no
// interactive prompt is available.
var ErrNoPrompter = errors.New("no interactive prompt available")

// ErrStillDisabled is returned by Cleanup when the check remains on the
// ignore list after re-enabling it.
var ErrStillDisabled = errors.New("health check is still disabled")
