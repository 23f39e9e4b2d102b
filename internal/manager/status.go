package manager

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/credentials"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/cronjob"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/deploy"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/execctx"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/schedule"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

// Report is the read-only view printed by the status command. Each section
// carries its own error so one unreachable part does not hide the rest.
type Report struct {
	CheckName    string
	CheckIgnored bool
	CheckErr     error
	// OtherIgnored lists the remaining ignore list entries.
	OtherIgnored []string

	Method      types.ConfigMethod
	BackendName string
	Exec        execctx.Context

	Artifact     deploy.Artifact
	MirrorInSync bool
	ArtifactErr  error

	CredentialSource credentials.Source
	CredentialUser   string
	CredentialErr    error

	Schedule    schedule.Resolution
	ScheduleErr error

	Job     cronjob.Status
	NextRun time.Time
	JobErr  error

	Hook    deploy.HookStatus
	HookErr error

	LoggingEnabled bool
	LogPath        string
	LogExists      bool
	LogSize        int64
}

// Drifted reports whether an installed job is out of step with the
// backup schedule.
func (r Report) Drifted() bool {
	return r.JobErr == nil && r.ScheduleErr == nil && r.Job.Installed && !r.Job.InSync
}

// Err joins the section errors.
func (r Report) Err() error {
	return errors.Join(
		stepErr(StepCheck, r.CheckErr),
		stepErr(StepMirror, r.ArtifactErr),
		stepErr(StepCredentials, r.CredentialErr),
		stepErr(StepSchedule, r.ScheduleErr),
		stepErr(StepJob, r.JobErr),
		stepErr(StepHook, r.HookErr),
	)
}

// Status gathers the report without changing anything.
func (m *Manager) Status(ctx context.Context) Report {
	s := m.settings
	r := Report{
		CheckName:        s.CheckName,
		Method:           s.Method,
		BackendName:      m.backend.Name(),
		Exec:             m.deps.Exec,
		CredentialSource: m.credSrc,
		CredentialUser:   m.cred.Username,
		CredentialErr:    m.credErr,
		LoggingEnabled:   s.LoggingActive(),
		LogPath:          s.LogPath(),
	}

	r.CheckIgnored, r.CheckErr = m.mutator().IsIgnored(ctx)
	if r.CheckErr == nil {
		var err error
		if r.OtherIgnored, err = m.mutator().Others(ctx); err != nil {
			m.logger.Debug("Cannot list ignored checks: %v", err)
		}
	}

	r.Artifact, r.ArtifactErr = m.mirror.Inspect(ctx)
	if r.ArtifactErr == nil && r.Artifact.MirrorPresent {
		r.MirrorInSync, r.ArtifactErr = m.mirror.ContentMatches()
	}

	r.Schedule, r.ScheduleErr = m.resolver.Load(ctx, m.backend)
	if r.ScheduleErr == nil {
		r.Job, r.JobErr = m.jobs.Check(ctx, r.Schedule.Trigger)
		if next, err := r.Schedule.Trigger.Next(m.now()); err == nil {
			r.NextRun = next
		}
	} else {
		// Still show what is installed.
		var entries []cronjob.Entry
		entries, r.JobErr = m.jobs.Entries(ctx)
		if len(entries) > 0 {
			r.Job = cronjob.Status{Installed: true, Entry: entries[0], Count: len(entries)}
		}
	}

	r.Hook, r.HookErr = m.hook().Status(ctx)

	if info, err := os.Stat(r.LogPath); err == nil {
		r.LogExists = true
		r.LogSize = info.Size()
	} else if !errors.Is(err, fs.ErrNotExist) {
		m.logger.Debug("Cannot stat log file %s: %v", r.LogPath, err)
	}
	return r
}
