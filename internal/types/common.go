package types

import "strings"

// ConfigMethod selects the configuration backend variant.
type ConfigMethod string

const (
	// ConfigMethodCLI - vendor command-line tool (config get/put/apply).
	ConfigMethodCLI ConfigMethod = "cli"

	// ConfigMethodAPI - control panel REST API with session cookie.
	ConfigMethodAPI ConfigMethod = "api"
)

// String returns the string representation of the config method.
func (m ConfigMethod) String() string {
	return string(m)
}

// ParseConfigMethod normalizes user input; unknown values fall back to CLI.
func ParseConfigMethod(s string) ConfigMethod {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "api", "rest", "http":
		return ConfigMethodAPI
	default:
		return ConfigMethodCLI
	}
}

// Action is a top-level command understood by the manager.
type Action string

const (
	ActionDisable     Action = "disable"
	ActionEnable      Action = "enable"
	ActionSetup       Action = "setup"
	ActionCleanup     Action = "cleanup"
	ActionStatus      Action = "status"
	ActionSync        Action = "sync"
	ActionCredentials Action = "credentials"
	ActionLogging     Action = "logging"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug - Debug logs (maximum detail)
	LogLevelDebug LogLevel = 5

	// LogLevelInfo - General information
	LogLevelInfo LogLevel = 4

	// LogLevelWarning - Warnings
	LogLevelWarning LogLevel = 3

	// LogLevelError - Errors
	LogLevelError LogLevel = 2

	// LogLevelCritical - Critical errors
	LogLevelCritical LogLevel = 1

	// LogLevelNone - No logs
	LogLevelNone LogLevel = 0
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarning:
		return "WARNING"
	case LogLevelError:
		return "ERROR"
	case LogLevelCritical:
		return "CRITICAL"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a name or numeric string to a LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "5":
		return LogLevelDebug
	case "info", "4", "":
		return LogLevelInfo
	case "warning", "warn", "3":
		return LogLevelWarning
	case "error", "2":
		return LogLevelError
	case "critical", "1":
		return LogLevelCritical
	case "none", "0":
		return LogLevelNone
	default:
		return LogLevelInfo
	}
}
