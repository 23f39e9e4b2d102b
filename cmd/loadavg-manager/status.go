package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/execctx"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/manager"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/tui"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

var titleCase = cases.Title(language.English)

type statusRow struct {
	section string
	state   string
	detail  string
}

func row(section, state, format string, args ...any) statusRow {
	return statusRow{section: section, state: state, detail: fmt.Sprintf(format, args...)}
}

func errRow(section string, err error) statusRow {
	return statusRow{section: section, state: tui.StatusError, detail: err.Error()}
}

// renderStatus prints r as a table followed by any warnings.
func renderStatus(w io.Writer, r manager.Report, now time.Time) {
	rows := statusRows(r, now)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "Section", "Detail"})
	for _, sr := range rows {
		t.AppendRow(table.Row{tui.StatusSymbol(sr.state), titleCase.String(sr.section), sr.detail})
	}
	t.Render()

	for _, warning := range statusWarnings(r) {
		fmt.Fprintf(w, "%s %s\n", tui.SymbolWarning, warning)
	}
}

func statusRows(r manager.Report, now time.Time) []statusRow {
	var rows []statusRow

	switch {
	case r.CheckErr != nil:
		rows = append(rows, errRow("health check", r.CheckErr))
	case r.CheckIgnored:
		rows = append(rows, row("health check", tui.StatusWarning, "%s is DISABLED (on the ignore list)", r.CheckName))
	default:
		rows = append(rows, row("health check", tui.StatusOK, "%s is enabled", r.CheckName))
	}
	if len(r.OtherIgnored) > 0 {
		rows[len(rows)-1].detail += fmt.Sprintf("; also ignored: %s", strings.Join(r.OtherIgnored, ", "))
	}

	rows = append(rows, row("backend", tui.StatusInfo, "%s (%s)", r.Method, r.BackendName))
	rows = append(rows, execRow(r.Exec))

	a := r.Artifact
	switch {
	case r.ArtifactErr != nil:
		rows = append(rows, errRow("mirror", r.ArtifactErr))
	case !a.MirrorPresent:
		rows = append(rows, row("mirror", tui.StatusWarning, "%s missing (source %s)", a.MirrorPath, a.SourcePath))
	case a.Stale() || !r.MirrorInSync:
		rows = append(rows, row("mirror", tui.StatusWarning, "%s is out of date (source modified %s); run sync",
			a.MirrorPath, humanize.Time(a.SourceModTime)))
	default:
		rows = append(rows, row("mirror", tui.StatusOK, "%s matches %s", a.MirrorPath, a.SourcePath))
	}

	switch {
	case r.CredentialErr != nil:
		rows = append(rows, errRow("credentials", r.CredentialErr))
	case r.CredentialUser != "":
		rows = append(rows, row("credentials", tui.StatusOK, "%s (%s)", r.CredentialUser, r.CredentialSource))
	case r.Method == types.ConfigMethodAPI:
		rows = append(rows, row("credentials", tui.StatusWarning, "none stored; run credentials"))
	default:
		rows = append(rows, row("credentials", tui.StatusInfo, "not needed for the %s backend", r.Method))
	}

	if r.ScheduleErr != nil {
		rows = append(rows, errRow("backup schedule", r.ScheduleErr))
	} else {
		rows = append(rows, scheduleRow(r))
	}

	rows = append(rows, jobRow(r, now))

	switch {
	case r.HookErr != nil:
		rows = append(rows, errRow("completion hook", r.HookErr))
	case r.Hook.Installed():
		rows = append(rows, row("completion hook", tui.StatusOK, "installed on every branch"))
	case r.Hook.Partial():
		rows = append(rows, row("completion hook", tui.StatusWarning, "installed on some branches only; run setup"))
	default:
		rows = append(rows, row("completion hook", tui.StatusWarning, "not installed"))
	}

	switch {
	case !r.LoggingEnabled:
		rows = append(rows, row("logging", tui.StatusInfo, "off"))
	case r.LogExists:
		rows = append(rows, row("logging", tui.StatusOK, "%s (%s)", r.LogPath, humanize.Bytes(uint64(r.LogSize))))
	default:
		rows = append(rows, row("logging", tui.StatusOK, "%s (not written yet)", r.LogPath))
	}
	return rows
}

func execRow(ex execctx.Context) statusRow {
	parts := []string{"caller " + ex.CallerIdentity}
	if ex.Elevated {
		parts = append(parts, "elevated")
	}
	admin := fmt.Sprintf("admin %s (%s", ex.Admin.Identity, ex.Admin.Kind)
	if ex.Admin.Strategy != "" {
		admin += " via " + ex.Admin.Strategy
	}
	parts = append(parts, admin+")")
	if ex.Routed() {
		parts = append(parts, fmt.Sprintf("fmos CLI via %s as %s", ex.Routing.Method, ex.TargetIdentity))
	}
	return row("execution", tui.StatusInfo, "%s", strings.Join(parts, ", "))
}

func scheduleRow(r manager.Report) statusRow {
	b := r.Schedule.Backup
	detail := fmt.Sprintf("%s %s, trigger %s (%d min earlier)", b.Cadence, b.Time, r.Schedule.Trigger, r.Schedule.Lead)
	switch {
	case b.Defaulted:
		return row("backup schedule", tui.StatusWarning, "%s; no schedule configured, using the default", detail)
	case b.Enabled != nil && !*b.Enabled:
		return row("backup schedule", tui.StatusWarning, "%s; automatic backup is disabled", detail)
	default:
		return row("backup schedule", tui.StatusOK, "%s", detail)
	}
}

func jobRow(r manager.Report, now time.Time) statusRow {
	if r.JobErr != nil {
		return errRow("cronjob", r.JobErr)
	}
	if !r.Job.Installed {
		return row("cronjob", tui.StatusWarning, "not installed; run setup")
	}
	detail := r.Job.Entry.Spec
	if r.Job.Count > 1 {
		detail += fmt.Sprintf(" (%d entries)", r.Job.Count)
	}
	if !r.NextRun.IsZero() {
		detail += fmt.Sprintf(", next run %s (%s)",
			r.NextRun.Format("2006-01-02 15:04"), humanize.RelTime(r.NextRun, now, "ago", "from now"))
	}
	if r.Drifted() {
		return row("cronjob", tui.StatusWarning, "%s", detail)
	}
	return row("cronjob", tui.StatusOK, "%s", detail)
}

func statusWarnings(r manager.Report) []string {
	var out []string
	if r.Drifted() {
		out = append(out, fmt.Sprintf("Cronjob runs at %q but the backup trigger is %s; the next disable corrects it",
			r.Job.Entry.Spec, r.Schedule.Trigger))
	}
	if r.CheckIgnored {
		out = append(out, "The health check stays disabled until enable runs")
	}
	return out
}
