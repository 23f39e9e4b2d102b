package manager

import (
	"context"
	"time"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/backend"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/command"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/config"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/credentials"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/cronjob"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/execctx"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/logging"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/settle"
)

// Prompter asks the operator for API credentials.
type Prompter interface {
	PromptCredentials(ctx context.Context, defaultUser string) (credentials.Credential, error)
}

// VerifyFunc checks a credential against the control panel.
type VerifyFunc func(ctx context.Context, cred credentials.Credential) error

// Deps groups the manager's collaborators. Nil fields fall back to the
// real implementations derived from Settings and Exec.
type Deps struct {
	Logger   *logging.Logger
	Settings config.Settings
	Exec     execctx.Context

	Backend  backend.Backend
	Table    cronjob.Table
	Runner   command.Runner
	Prompter Prompter
	Verify   VerifyFunc
	Sleep    settle.SleepFunc
	Now      func() time.Time
}

func (d Deps) runner() command.Runner {
	if d.Runner != nil {
		return d.Runner
	}
	return command.OS{}
}

func (d Deps) table() cronjob.Table {
	if d.Table != nil {
		return d.Table
	}
	// crontab -u is addressed directly; only the fmos CLI is routed.
	return cronjob.CrontabTable{Runner: d.runner(), Args: d.Exec.CrontabArgs()}
}

func (d Deps) now() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return time.Now
}

func (d Deps) verify() VerifyFunc {
	if d.Verify != nil {
		return d.Verify
	}
	s := d.Settings
	return func(ctx context.Context, cred credentials.Credential) error {
		api, err := backend.NewAPI(backend.APIOptions{
			BaseURL:      s.APIURL,
			Insecure:     s.APIInsecure,
			Timeout:      s.APITimeout,
			ApplyTimeout: s.ApplyTimeout,
			Logger:       d.Logger,
		})
		if err != nil {
			return err
		}
		return api.Login(ctx, cred)
	}
}

func (d Deps) newBackend(cred credentials.Credential) (backend.Backend, error) {
	s := d.Settings
	return backend.New(backend.Options{
		Method:       s.Method,
		CLIPath:      s.CLIPath,
		Runner:       d.Exec.Runner(d.runner()),
		APIURL:       s.APIURL,
		Insecure:     s.APIInsecure,
		Timeout:      s.APITimeout,
		ApplyTimeout: s.ApplyTimeout,
		Credential:   cred,
		Logger:       d.Logger,
	})
}
