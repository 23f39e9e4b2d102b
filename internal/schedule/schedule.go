// Package schedule derives the disable trigger time from the appliance's
// automatic backup schedule.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/backend"
)

const (
	DefaultCadence     = "daily"
	DefaultLeadMinutes = 5
)

// DefaultBackup is the backup time assumed when the document says nothing.
var DefaultBackup = Time{Hour: 23, Minute: 48}

// Time is a time of day with minute resolution.
type Time struct {
	Hour   int
	Minute int
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Valid reports whether t is a real time of day.
func (t Time) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// CronSpec renders t as a daily crontab schedule ("M H * * *").
func (t Time) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
}

// Next returns the next occurrence of t strictly after from.
func (t Time) Next(from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(t.CronSpec())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid trigger %s: %w", t, err)
	}
	return sched.Next(from), nil
}

// TriggerFor subtracts lead minutes from backup, borrowing an hour when the
// minute underflows and wrapping to 23 when the hour underflows.
func TriggerFor(backup Time, lead int) Time {
	minute := backup.Minute - lead
	hour := backup.Hour
	if minute < 0 {
		minute += 60
		hour--
		if hour < 0 {
			hour = 23
		}
	}
	return Time{Hour: hour, Minute: minute}
}

// Backup is the decoded automatic backup schedule.
type Backup struct {
	Time    Time
	Cadence string
	// Enabled is nil when the document does not say.
	Enabled *bool
	// Defaulted is true when no schedule document was present.
	Defaulted bool
}

// Resolution pairs the backup schedule with its trigger.
type Resolution struct {
	Backup  Backup
	Trigger Time
	Lead    int
}

// Resolver computes trigger times. The zero value uses the default lead.
type Resolver struct {
	LeadMinutes int
}

func (r Resolver) lead() int {
	if r.LeadMinutes <= 0 || r.LeadMinutes > 59 {
		return DefaultLeadMinutes
	}
	return r.LeadMinutes
}

// Resolve decodes doc (nested under "auto_backup" or flat) and computes
// the trigger. Missing or out of range fields fall back to their defaults.
func (r Resolver) Resolve(doc backend.Document) Resolution {
	lead := r.lead()
	fields, ok := backend.Object(doc, "auto_backup")
	if !ok {
		fields = doc
	}

	b := Backup{Time: DefaultBackup, Cadence: DefaultCadence}
	if len(fields) == 0 {
		b.Defaulted = true
		return Resolution{Backup: b, Trigger: TriggerFor(b.Time, lead), Lead: lead}
	}

	if h, ok := intField(fields, "hour"); ok && h >= 0 && h <= 23 {
		b.Time.Hour = h
	}
	if m, ok := intField(fields, "minute"); ok && m >= 0 && m <= 59 {
		b.Time.Minute = m
	}
	if s, ok := fields["schedule"].(string); ok && strings.TrimSpace(s) != "" {
		b.Cadence = strings.TrimSpace(s)
	}
	if e, ok := boolField(fields, "enabled"); ok {
		b.Enabled = &e
	}

	return Resolution{Backup: b, Trigger: TriggerFor(b.Time, lead), Lead: lead}
}

// Load reads the backup schedule document and resolves it.
func (r Resolver) Load(ctx context.Context, b backend.Backend) (Resolution, error) {
	doc, err := b.Get(ctx, backend.PathAutoBackup)
	if err != nil {
		return Resolution{}, fmt.Errorf("read backup schedule %s: %w", backend.PathAutoBackup, err)
	}
	return r.Resolve(doc), nil
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func boolField(m map[string]any, key string) (bool, bool) {
	switch v := m[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		return false, false
	}
}
