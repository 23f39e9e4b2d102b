// Package cronjob keeps the single "disable" job of this program in the
// admin's crontab aligned with the resolved trigger time.
package cronjob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/robfig/cron/v3"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/command"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/logging"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/schedule"
)

// DisableAction is the argument that marks our job lines.
const DisableAction = "disable"

const noLogEnv = "NO_LOG=1"

// Entry is a parsed crontab line that belongs to this program.
type Entry struct {
	Line    string
	Index   int
	Spec    string
	Command string
	// Time is valid only when TimeOK; lines using ranges, steps or macros
	// never match a trigger and are rewritten.
	Time   schedule.Time
	TimeOK bool
}

// NoLog reports whether the entry's command disables logging.
func (e Entry) NoLog() bool {
	return hasNoLog(e.Command)
}

// Status is the read-only comparison of the installed job and a trigger.
type Status struct {
	Installed bool
	Entry     Entry
	Count     int
	Expected  schedule.Time
	InSync    bool
}

// Outcome describes what Reconcile did.
type Outcome int

const (
	OutcomeAbsent Outcome = iota
	OutcomeInSync
	OutcomeRewritten
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInSync:
		return "in-sync"
	case OutcomeRewritten:
		return "rewritten"
	default:
		return "absent"
	}
}

// Controller manages our job lines. Paths holds every path that may
// appear in our command (primary artifact and mirror); lines referencing
// other paths are never touched.
type Controller struct {
	Table  Table
	Paths  []string
	Logger *logging.Logger
}

// BuildCommand renders the job command for executable with args, followed
// by the disable action.
func BuildCommand(executable string, args []string, noLog bool) string {
	parts := make([]string, 0, len(args)+4)
	if noLog {
		parts = append(parts, noLogEnv)
	}
	parts = append(parts, executable)
	parts = append(parts, args...)
	parts = append(parts, DisableAction, ">/dev/null", "2>&1")
	return strings.Join(parts, " ")
}

// Line renders a full crontab line.
func Line(trigger schedule.Time, cmd string) string {
	return trigger.CronSpec() + " " + cmd
}

func (c *Controller) owns(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return false
	}
	return command.HasWord(trimmed, DisableAction) && command.HasWord(trimmed, c.Paths...)
}

func parseEntry(line string, index int) Entry {
	e := Entry{Line: line, Index: index}
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "@") {
		macro, rest := cutFields(trimmed, 1)
		e.Spec = macro[0]
		e.Command = rest
		return e
	}
	fields, rest := cutFields(trimmed, 5)
	if len(fields) < 5 {
		e.Command = strings.TrimSpace(line)
		return e
	}
	e.Spec = strings.Join(fields, " ")
	e.Command = rest

	if _, err := cron.ParseStandard(e.Spec); err != nil {
		return e
	}
	minute, errM := strconv.Atoi(fields[0])
	hour, errH := strconv.Atoi(fields[1])
	if errM != nil || errH != nil || fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
		return e
	}
	e.Time = schedule.Time{Hour: hour, Minute: minute}
	e.TimeOK = e.Time.Valid()
	return e
}

// cutFields returns the first n whitespace separated fields of s and the
// remainder with its original spacing.
func cutFields(s string, n int) ([]string, string) {
	var fields []string
	rest := s
	for len(fields) < n {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" {
			break
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			fields = append(fields, rest)
			rest = ""
			break
		}
		fields = append(fields, rest[:end])
		rest = rest[end:]
	}
	return fields, strings.TrimSpace(rest)
}

func splitLines(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if strings.TrimSpace(normalized) == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(normalized, "\n"), "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func (c *Controller) load(ctx context.Context) ([]string, []Entry, error) {
	content, err := c.Table.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	lines := splitLines(content)
	var entries []Entry
	for i, line := range lines {
		if c.owns(line) {
			entries = append(entries, parseEntry(line, i))
		}
	}
	return lines, entries, nil
}

// Entries returns our job lines.
func (c *Controller) Entries(ctx context.Context) ([]Entry, error) {
	_, entries, err := c.load(ctx)
	return entries, err
}

// Install removes every job line of ours and appends one for trigger.
func (c *Controller) Install(ctx context.Context, trigger schedule.Time, cmd string) error {
	lines, _, err := c.load(ctx)
	if err != nil {
		return fmt.Errorf("install job: %w", err)
	}
	kept := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		if !c.owns(line) {
			kept = append(kept, line)
		}
	}
	line := Line(trigger, cmd)
	kept = append(kept, line)
	if err := c.Table.Write(ctx, joinLines(kept)); err != nil {
		return fmt.Errorf("install job: %w", err)
	}
	c.Logger.Info("Cronjob configured: %s", line)
	return nil
}

// Check compares the installed job with trigger without writing.
func (c *Controller) Check(ctx context.Context, trigger schedule.Time) (Status, error) {
	_, entries, err := c.load(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("inspect job: %w", err)
	}
	st := Status{Expected: trigger, Count: len(entries)}
	if len(entries) == 0 {
		return st, nil
	}
	st.Installed = true
	st.Entry = entries[0]
	st.InSync = len(entries) == 1 && entries[0].TimeOK && entries[0].Time == trigger
	return st, nil
}

// Reconcile rewrites our job when its time differs from trigger or when
// duplicates exist. The command of the first entry is kept verbatim so any
// logging flags survive.
func (c *Controller) Reconcile(ctx context.Context, trigger schedule.Time) (Outcome, error) {
	lines, entries, err := c.load(ctx)
	if err != nil {
		return OutcomeAbsent, fmt.Errorf("reconcile job: %w", err)
	}
	if len(entries) == 0 {
		c.Logger.Skip("Cronjob not configured, skipping schedule check")
		return OutcomeAbsent, nil
	}

	first := entries[0]
	if len(entries) == 1 && first.TimeOK && first.Time == trigger {
		c.Logger.Debug("Cronjob in sync at %s", trigger)
		return OutcomeInSync, nil
	}

	replacement := Line(trigger, first.Command)
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		switch {
		case i == first.Index:
			out = append(out, replacement)
		case c.owns(line):
		default:
			out = append(out, line)
		}
	}
	if err := c.Table.Write(ctx, joinLines(out)); err != nil {
		return OutcomeAbsent, fmt.Errorf("reconcile job: %w", err)
	}

	old := first.Spec
	if first.TimeOK {
		old = first.Time.String()
	}
	if !first.TimeOK || first.Time != trigger {
		c.Logger.Notice("Backup schedule changed, cronjob moved from %s to %s", old, trigger)
	}
	if len(entries) > 1 {
		c.Logger.Notice("Collapsed %d duplicate cronjob entries into one at %s", len(entries), trigger)
	}
	return OutcomeRewritten, nil
}

// Remove deletes our job lines. It reports how many were removed.
func (c *Controller) Remove(ctx context.Context) (int, error) {
	lines, entries, err := c.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("remove job: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if !c.owns(line) {
			kept = append(kept, line)
		}
	}
	if err := c.Table.Write(ctx, joinLines(kept)); err != nil {
		return 0, fmt.Errorf("remove job: %w", err)
	}
	return len(entries), nil
}

// SetLogging rewrites our job commands so they carry (or drop) NO_LOG=1.
func (c *Controller) SetLogging(ctx context.Context, enabled bool) (bool, error) {
	lines, entries, err := c.load(ctx)
	if err != nil {
		return false, fmt.Errorf("update job logging: %w", err)
	}
	changed := false
	for _, e := range entries {
		cmd := WithLogging(e.Command, enabled)
		if cmd == e.Command {
			continue
		}
		if e.Spec != "" {
			lines[e.Index] = e.Spec + " " + cmd
		} else {
			lines[e.Index] = cmd
		}
		changed = true
	}
	if !changed {
		return false, nil
	}
	if err := c.Table.Write(ctx, joinLines(lines)); err != nil {
		return false, fmt.Errorf("update job logging: %w", err)
	}
	return true, nil
}

// WithLogging adds or strips the logging suppression from cmd.
func WithLogging(cmd string, enabled bool) string {
	fields := strings.Fields(cmd)
	out := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if f == noLogEnv || f == "--no-log" {
			continue
		}
		out = append(out, f)
	}
	if !enabled {
		if len(out) > 0 && out[0] == "/usr/bin/env" {
			out = append([]string{out[0], noLogEnv}, out[1:]...)
		} else {
			out = append([]string{noLogEnv}, out...)
		}
	}
	return strings.Join(out, " ")
}

func hasNoLog(cmd string) bool {
	for _, f := range strings.Fields(cmd) {
		if f == noLogEnv || f == "--no-log" {
			return true
		}
	}
	return false
}
