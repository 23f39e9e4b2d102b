package cronjob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/command"
)

// Table is a user's job table.
type Table interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, content string) error
}

// CrontabTable reads and writes through crontab(1). Args address another
// user's table (for example "-u", "admin") when running elevated.
type CrontabTable struct {
	Runner command.Runner
	Args   []string
}

func (t CrontabTable) args(extra ...string) []string {
	out := append([]string(nil), t.Args...)
	return append(out, extra...)
}

func (t CrontabTable) Read(ctx context.Context) (string, error) {
	out, err := t.Runner.Run(ctx, "crontab", t.args("-l")...)
	if err != nil {
		var exitErr *command.ExitError
		if errors.As(err, &exitErr) && strings.Contains(strings.ToLower(exitErr.Stderr), "no crontab for") {
			return "", nil
		}
		return "", fmt.Errorf("crontab -l failed: %w", err)
	}
	return string(out), nil
}

func (t CrontabTable) Write(ctx context.Context, content string) error {
	if _, err := t.Runner.RunWithInput(ctx, []byte(content), "crontab", t.args("-")...); err != nil {
		return fmt.Errorf("crontab update failed: %w", err)
	}
	return nil
}
