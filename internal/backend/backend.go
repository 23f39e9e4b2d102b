// Package backend reads, writes and applies documents of the vendor
// configuration tree through either the local fmos CLI or the REST API.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/command"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/credentials"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/logging"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

// Well-known configuration paths.
const (
	PathHealth     = "os/health"
	PathAutoBackup = "os/backup/auto-backup"
	PathPostBackup = "os/backup/post-backup"
)

// Backend is the configuration subsystem. A missing document is returned
// as an empty Document, never as an error.
type Backend interface {
	Get(ctx context.Context, path string) (Document, error)
	Put(ctx context.Context, path string, doc Document) error
	Apply(ctx context.Context) error
	Name() string
}

// ErrUnauthenticated is returned when the backend rejects the session or
// the supplied credentials.
var ErrUnauthenticated = errors.New("configuration backend rejected authentication")

// CommandError reports a failed fmos CLI invocation.
type CommandError struct {
	Op   string
	Path string
	Err  error
}

func (e *CommandError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("fmos config %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("fmos config %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// HTTPError reports an unexpected API response.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// PartialApplyError is returned by Commit when the document was stored but
// applying the configuration failed. The operator must re-run; applying
// again automatically is not safe.
type PartialApplyError struct {
	Path string
	Err  error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("%s was written but configuration apply failed (re-run required): %v", e.Path, e.Err)
}

func (e *PartialApplyError) Unwrap() error { return e.Err }

// Commit writes doc to path and applies the configuration.
func Commit(ctx context.Context, b Backend, path string, doc Document) error {
	if err := b.Put(ctx, path, doc); err != nil {
		return err
	}
	if err := b.Apply(ctx); err != nil {
		return &PartialApplyError{Path: path, Err: err}
	}
	return nil
}

// Options selects and configures a Backend variant.
type Options struct {
	Method types.ConfigMethod

	CLIPath string
	Runner  command.Runner

	APIURL       string
	Insecure     bool
	Timeout      time.Duration
	ApplyTimeout time.Duration
	Credential   credentials.Credential

	Logger *logging.Logger
}

// New returns the backend selected by opts.Method.
func New(opts Options) (Backend, error) {
	switch opts.Method {
	case types.ConfigMethodAPI:
		return NewAPI(APIOptions{
			BaseURL:      opts.APIURL,
			Insecure:     opts.Insecure,
			Timeout:      opts.Timeout,
			ApplyTimeout: opts.ApplyTimeout,
			Credential:   opts.Credential,
			Logger:       opts.Logger,
		})
	case types.ConfigMethodCLI, "":
		if opts.Runner == nil {
			return nil, errors.New("cli backend requires a command runner")
		}
		return &CLI{Binary: opts.CLIPath, Runner: opts.Runner, Logger: opts.Logger}, nil
	default:
		return nil, fmt.Errorf("unknown configuration method %q", opts.Method)
	}
}
