// Package types defines shared application data types.
package types

// ExitCode represents the application's exit codes.
type ExitCode int

const (
	// ExitSuccess - Execution completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGenericError - Unspecified generic error.
	ExitGenericError ExitCode = 1

	// ExitUsageError - Missing/unknown command or invalid flags.
	ExitUsageError ExitCode = 2

	// ExitConfigError - Invalid settings (file, environment or flags).
	ExitConfigError ExitCode = 3

	// ExitBackendError - The configuration backend was unreachable or rejected the request.
	ExitBackendError ExitCode = 4

	// ExitPartialApply - A document was written but the subsequent apply failed.
	ExitPartialApply ExitCode = 5

	// ExitSchedulerError - The job table could not be read or written.
	ExitSchedulerError ExitCode = 6

	// ExitPermissionError - No usable identity-switch primitive, or filesystem permission denied.
	ExitPermissionError ExitCode = 7

	// ExitDeployError - Mirror artifact could not be staged or removed.
	ExitDeployError ExitCode = 8

	// ExitCredentialError - Credentials missing, unreadable or rejected.
	ExitCredentialError ExitCode = 9

	// ExitPanicError - Unhandled panic caught.
	ExitPanicError ExitCode = 13

	// ExitInterrupted - Terminated by SIGINT/SIGTERM.
	ExitInterrupted ExitCode = 130
)

// String returns a human-readable description of the exit code.
func (e ExitCode) String() string {
	switch e {
	case ExitSuccess:
		return "success"
	case ExitGenericError:
		return "generic error"
	case ExitUsageError:
		return "usage error"
	case ExitConfigError:
		return "configuration error"
	case ExitBackendError:
		return "backend error"
	case ExitPartialApply:
		return "partial apply"
	case ExitSchedulerError:
		return "scheduler error"
	case ExitPermissionError:
		return "permission error"
	case ExitDeployError:
		return "deployment error"
	case ExitCredentialError:
		return "credential error"
	case ExitPanicError:
		return "panic error"
	case ExitInterrupted:
		return "interrupted"
	default:
		return "unknown error"
	}
}

// Int returns the exit code as an int.
func (e ExitCode) Int() int {
	return int(e)
}
