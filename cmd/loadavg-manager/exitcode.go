package main

import (
	"context"
	"errors"
	"io/fs"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/backend"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/execctx"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/input"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/manager"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/tui/wizard"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

// usageError marks command line mistakes.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

// configError marks settings that could not be loaded or validated.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func exitCodeFor(err error) types.ExitCode {
	if err == nil {
		return types.ExitSuccess
	}

	var (
		usage   *usageError
		cfg     *configError
		partial *backend.PartialApplyError
	)
	switch {
	case errors.As(err, &usage):
		return types.ExitUsageError
	case errors.As(err, &cfg):
		return types.ExitConfigError
	case errors.As(err, &partial):
		return types.ExitPartialApply
	case errors.Is(err, context.Canceled), input.IsAborted(err), errors.Is(err, wizard.ErrCredentialsCancelled):
		return types.ExitInterrupted
	case execctx.IsRoutingError(err):
		return types.ExitPermissionError
	}

	step, _ := manager.FailedStep(err)
	switch step {
	case manager.StepCredentials:
		return types.ExitCredentialError
	case manager.StepSettle:
		return types.ExitInterrupted
	case manager.StepSettings:
		return types.ExitConfigError
	}

	var (
		cmdErr  *backend.CommandError
		httpErr *backend.HTTPError
	)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return types.ExitPermissionError
	case backend.IsAuthError(err), errors.As(err, &cmdErr), errors.As(err, &httpErr):
		return types.ExitBackendError
	}

	switch step {
	case manager.StepJob:
		return types.ExitSchedulerError
	case manager.StepMirror:
		return types.ExitDeployError
	case manager.StepCheck, manager.StepHook, manager.StepSchedule:
		return types.ExitBackendError
	}
	return types.ExitGenericError
}
