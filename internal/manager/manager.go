// Package manager wires the components together into the user-facing
// actions: disable, enable, setup, cleanup, status, sync, logging and
// credentials.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/backend"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/config"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/credentials"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/cronjob"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/deploy"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/ignorelist"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/logging"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/schedule"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/settle"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

// Manager runs the actions for one invocation.
type Manager struct {
	deps     Deps
	logger   *logging.Logger
	settings config.Settings

	backend     backend.Backend
	ownsBackend bool

	store    credentials.Store
	cred     credentials.Credential
	credSrc  credentials.Source
	credErr  error
	resolver schedule.Resolver
	jobs     *cronjob.Controller
	mirror   deploy.Mirror
	settle   *settle.Controller
	verify   VerifyFunc
	now      func() time.Time
}

// New builds a Manager from d.
func New(d Deps) (*Manager, error) {
	s := d.Settings
	m := &Manager{
		deps:     d,
		logger:   d.Logger,
		settings: s,
		store:    credentials.Store{Path: s.CredentialsPath(), Passphrase: s.CredsPassphrase},
		resolver: schedule.Resolver{LeadMinutes: s.LeadMinutes},
		mirror:   deploy.Mirror{Source: s.SourcePath, Target: s.MirrorPath, Logger: d.Logger},
		settle: &settle.Controller{
			Delay:    s.SettleDelay,
			Bypass:   s.NoWait,
			Progress: time.Minute,
			Sleep:    d.Sleep,
			Logger:   d.Logger,
		},
		verify: d.verify(),
		now:    d.now(),
	}
	m.jobs = &cronjob.Controller{
		Table:  d.table(),
		Paths:  m.ownedPaths(),
		Logger: d.Logger,
	}

	env := credentials.Credential{Username: s.APIUser, Password: s.APIPass}
	m.cred, m.credSrc, m.credErr = credentials.Resolve(env, m.store)
	if m.credErr != nil && s.Method == types.ConfigMethodAPI {
		m.logger.Warning("Stored API credentials unusable: %v", m.credErr)
	}

	if d.Backend != nil {
		m.backend = d.Backend
		return m, nil
	}
	b, err := d.newBackend(m.cred)
	if err != nil {
		return nil, fmt.Errorf("configure backend: %w", err)
	}
	m.backend = b
	m.ownsBackend = true
	return m, nil
}

func (m *Manager) ownedPaths() []string {
	return []string{m.settings.SourcePath, m.settings.MirrorPath}
}

// Backend returns the configuration backend in use.
func (m *Manager) Backend() backend.Backend { return m.backend }

func (m *Manager) mutator() *ignorelist.Mutator {
	return &ignorelist.Mutator{Backend: m.backend, CheckName: m.settings.CheckName, Logger: m.logger}
}

func (m *Manager) hook() *deploy.Hook {
	return &deploy.Hook{Backend: m.backend, Paths: m.ownedPaths(), Logger: m.logger}
}

// Invocation returns the command line installed in the job table and the
// completion hook. It always runs the mirror.
func (m *Manager) Invocation() deploy.Invocation {
	s := m.settings
	return deploy.Invocation{
		Executable: s.MirrorPath,
		Source:     s.SourcePath,
		ConfigFile: s.ConfigFile,
		AdminUser:  s.AdminUser,
		UseAPI:     s.Method == types.ConfigMethodAPI,
		NoLog:      !s.LoggingActive(),
	}
}

// useCredential switches a self-built backend to cred.
func (m *Manager) useCredential(cred credentials.Credential, src credentials.Source) error {
	m.cred, m.credSrc, m.credErr = cred, src, nil
	if !m.ownsBackend {
		return nil
	}
	b, err := m.deps.newBackend(cred)
	if err != nil {
		return fmt.Errorf("configure backend: %w", err)
	}
	m.backend = b
	return nil
}

// Disable suppresses the health check ahead of the backup.
func (m *Manager) Disable(ctx context.Context) (err error) {
	done := logging.DebugStart(m.logger, "disable", "check=%s backend=%s", m.settings.CheckName, m.backend.Name())
	defer func() { done(err) }()

	m.logger.Step("Disabling %s", m.settings.CheckName)
	m.reconcileJob(ctx)
	if _, err := m.mutator().Disable(ctx); err != nil {
		return stepErr(StepCheck, err)
	}
	return nil
}

// Enable waits for the settling delay and then restores the check. An
// interrupted wait leaves the check disabled.
func (m *Manager) Enable(ctx context.Context) (err error) {
	done := logging.DebugStart(m.logger, "enable", "check=%s backend=%s", m.settings.CheckName, m.backend.Name())
	defer func() { done(err) }()

	m.logger.Step("Enabling %s", m.settings.CheckName)
	if err := m.settle.Wait(ctx); err != nil {
		return stepErr(StepSettle, err)
	}
	m.reconcileJob(ctx)
	if _, err := m.mutator().Enable(ctx); err != nil {
		return stepErr(StepCheck, err)
	}
	return nil
}

// reconcileJob realigns the job with the backup schedule. Failures are
// reported but never block the check change itself.
func (m *Manager) reconcileJob(ctx context.Context) {
	if !m.settings.DriftCheck {
		m.logger.Debug("Schedule drift check disabled")
		return
	}
	res, err := m.resolver.Load(ctx, m.backend)
	if err != nil {
		m.logger.Warning("Schedule drift check skipped: %v", err)
		return
	}
	if _, err := m.jobs.Reconcile(ctx, res.Trigger); err != nil {
		m.logger.Warning("Schedule drift check failed: %v", err)
	}
}

// Setup installs the mirror, the completion hook and the job.
func (m *Manager) Setup(ctx context.Context) (err error) {
	done := logging.DebugStart(m.logger, "setup", "source=%s mirror=%s", m.settings.SourcePath, m.settings.MirrorPath)
	defer func() { done(err) }()

	m.logger.Step("Running full setup")

	if m.settings.Method == types.ConfigMethodAPI {
		if m.credSrc == credentials.SourceNone {
			m.logger.Info("API credentials not found, please provide them now")
			if err := m.Credentials(ctx); err != nil {
				return fmt.Errorf("setup aborted, credentials required: %w", err)
			}
		} else {
			m.logger.Info("Using %s API credentials (user: %s)", m.credSrc, m.cred.Username)
		}
	}

	if err := m.mirror.Ensure(ctx); err != nil {
		return stepErr(StepMirror, err)
	}

	res, err := m.resolver.Load(ctx, m.backend)
	if err != nil {
		return stepErr(StepSchedule, err)
	}
	if res.Backup.Defaulted {
		m.logger.Notice("No backup schedule configured, assuming %s", res.Backup.Time)
	}
	if res.Backup.Enabled != nil && !*res.Backup.Enabled {
		m.logger.Warning("Automatic backups are disabled; the job is installed anyway")
	}

	inv := m.Invocation()
	if _, err := m.hook().Install(ctx, inv.HookCommand()); err != nil {
		return stepErr(StepHook, err)
	}
	m.logger.Info("Post-backup command: %s", inv.HookCommand())

	if err := m.jobs.Install(ctx, res.Trigger, inv.JobCommand()); err != nil {
		return stepErr(StepJob, err)
	}
	m.logger.Info("Backup is scheduled at %s (%s)", res.Backup.Time, res.Backup.Cadence)
	m.logger.Info("%s will be disabled at %s", m.settings.CheckName, res.Trigger)
	m.logger.Info("Setup complete")
	return nil
}

// Cleanup removes everything Setup installed and leaves the check enabled.
// Every step runs even when an earlier one failed.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.logger.Step("Removing all setup configurations")
	var errs []error

	if n, err := m.jobs.Remove(ctx); err != nil {
		m.logger.Warning("Failed to remove cronjob: %v", err)
		errs = append(errs, stepErr(StepJob, err))
	} else if n > 0 {
		m.logger.Info("Cronjob removed")
	} else {
		m.logger.Skip("No cronjob to remove")
	}

	if changed, err := m.hook().Clear(ctx); err != nil {
		m.logger.Warning("Failed to clear post-backup configuration: %v", err)
		errs = append(errs, stepErr(StepHook, err))
	} else if changed {
		m.logger.Info("Post-backup configuration cleared")
	}

	if removed, err := m.mirror.Remove(); err != nil {
		m.logger.Warning("Failed to remove mirror: %v", err)
		errs = append(errs, stepErr(StepMirror, err))
	} else if removed {
		m.logger.Info("Removed mirror %s", m.settings.MirrorPath)
	}

	if m.store.Exists() {
		if err := m.store.Remove(); err != nil {
			m.logger.Warning("Failed to remove stored API credentials: %v", err)
			errs = append(errs, stepErr(StepCredentials, err))
		} else {
			m.logger.Info("Removed stored API credentials")
		}
	}

	if _, err := m.mutator().Enable(ctx); err != nil {
		errs = append(errs, stepErr(StepCheck, err))
	} else if ignored, err := m.mutator().IsIgnored(ctx); err != nil {
		errs = append(errs, stepErr(StepCheck, err))
	} else if ignored {
		errs = append(errs, stepErr(StepCheck, fmt.Errorf("%s: %w", m.settings.CheckName, ErrStillDisabled)))
	} else {
		m.logger.Info("Verified %s is enabled", m.settings.CheckName)
	}

	return errors.Join(errs...)
}

// Sync refreshes the mirror when it is stale or differs from the source.
func (m *Manager) Sync(ctx context.Context) (bool, error) {
	changed, err := m.mirror.Sync(ctx)
	if err != nil {
		return false, stepErr(StepMirror, err)
	}
	return changed, nil
}

// SetLogging persists the logging preference and rewrites the installed
// job and hook to match it.
func (m *Manager) SetLogging(ctx context.Context, enabled bool) error {
	if err := config.SaveLogging(m.settings.SettingsPath(), enabled); err != nil {
		return stepErr(StepSettings, err)
	}
	m.settings.LogEnabled = enabled

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	m.logger.Info("Logging %s in %s", state, m.settings.SettingsPath())

	changed, err := m.jobs.SetLogging(ctx, enabled)
	if err != nil {
		return stepErr(StepJob, err)
	}
	if changed {
		m.logger.Info("Cronjob updated")
	}
	changed, err = m.hook().SetLogging(ctx, enabled)
	if err != nil {
		return stepErr(StepHook, err)
	}
	if changed {
		m.logger.Info("Post-backup command updated")
	}
	return nil
}

// Credentials prompts for, verifies and stores API credentials.
func (m *Manager) Credentials(ctx context.Context) error {
	if m.deps.Prompter == nil {
		return stepErr(StepCredentials, ErrNoPrompter)
	}
	cred, err := m.deps.Prompter.PromptCredentials(ctx, m.cred.Username)
	if err != nil {
		return stepErr(StepCredentials, err)
	}
	if !cred.Valid() {
		return stepErr(StepCredentials, errors.New("username and password are required"))
	}

	m.logger.Info("Testing credentials for %s", cred.Username)
	if err := m.verify(ctx, cred); err != nil {
		return stepErr(StepCredentials, fmt.Errorf("credentials rejected: %w", err))
	}

	if err := m.store.Save(cred, credentials.PermFor(m.deps.Exec.Elevated)); err != nil {
		return stepErr(StepCredentials, err)
	}
	m.logger.Info("Credentials stored in %s", m.store.Path)
	return m.useCredential(cred, credentials.SourceStored)
}
