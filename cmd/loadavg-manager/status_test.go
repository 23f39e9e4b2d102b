package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/cronjob"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/deploy"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/execctx"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/manager"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/schedule"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/tui"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

func sampleReport() manager.Report {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	return manager.Report{
		CheckName:    "fmos.health.checks.basic.LoadAvgCheck",
		CheckIgnored: true,
		OtherIgnored: []string{"fmos.health.checks.basic.DiskCheck"},
		Method:       types.ConfigMethodCLI,
		BackendName:  "fmos-cli",
		Exec: execctx.Context{
			CallerIdentity: "root",
			Elevated:       true,
			TargetIdentity: "fwadmin",
			Admin:          execctx.Resolution{Identity: "fwadmin", Kind: execctx.Found, Strategy: "artifact-path"},
			Routing:        execctx.Routing{Method: execctx.Runuser, Target: "fwadmin"},
		},
		Artifact: deploy.Artifact{
			SourcePath:    "/home/fwadmin/loadavg-manager",
			MirrorPath:    "/usr/local/sbin/fmos-loadavg-manager",
			SourceModTime: now.Add(-time.Hour),
			MirrorModTime: now.Add(-time.Hour),
			MirrorPresent: true,
		},
		MirrorInSync: true,
		Schedule: schedule.Resolution{
			Backup:  schedule.Backup{Time: schedule.Time{Hour: 2, Minute: 0}, Cadence: "daily"},
			Trigger: schedule.Time{Hour: 1, Minute: 55},
			Lead:    5,
		},
		Job: cronjob.Status{
			Installed: true,
			Entry:     cronjob.Entry{Spec: "43 23 * * *"},
			Count:     1,
			Expected:  schedule.Time{Hour: 1, Minute: 55},
		},
		NextRun:        now.Add(14 * time.Hour),
		Hook:           deploy.HookStatus{Commands: map[string][]string{deploy.BranchSuccess: {"x"}}},
		LoggingEnabled: true,
		LogPath:        "/home/fwadmin/loadavg_check_manager.log",
		LogExists:      true,
		LogSize:        2048,
	}
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	renderStatus(&buf, sampleReport(), now)
	out := buf.String()

	assert.Contains(t, out, "Health Check")
	assert.Contains(t, out, "Completion Hook")
	assert.Contains(t, out, "DISABLED")
	assert.Contains(t, out, "also ignored: fmos.health.checks.basic.DiskCheck")
	assert.Contains(t, out, "fmos CLI via runuser as fwadmin")
	assert.Contains(t, out, "admin fwadmin (found via artifact-path)")
	assert.Contains(t, out, "daily 02:00, trigger 01:55")
	assert.Contains(t, out, "2024-03-02 02:00 (14 hours from now)")
	assert.Contains(t, out, "some branches only")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, tui.SymbolWarning+` Cronjob runs at "43 23 * * *" but the backup trigger is 01:55`)
}

func TestStatusRowsSectionErrors(t *testing.T) {
	r := sampleReport()
	r.CheckErr = errors.New("connection refused")
	r.ScheduleErr = errors.New("decode failed")
	r.JobErr = errors.New("crontab: permission denied")

	states := map[string]string{}
	for _, sr := range statusRows(r, time.Now()) {
		states[sr.section] = sr.state
	}
	assert.Equal(t, tui.StatusError, states["health check"])
	assert.Equal(t, tui.StatusError, states["backup schedule"])
	assert.Equal(t, tui.StatusError, states["cronjob"])
	assert.Equal(t, tui.StatusOK, states["mirror"])
	assert.Empty(t, statusWarnings(manager.Report{}))
}

func TestStatusRowsCredentials(t *testing.T) {
	r := sampleReport()
	r.Method = types.ConfigMethodAPI
	for _, sr := range statusRows(r, time.Now()) {
		if sr.section == "credentials" {
			assert.Equal(t, tui.StatusWarning, sr.state)
			assert.Contains(t, sr.detail, "run credentials")
		}
	}
}
