package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/command"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/logging"
)

// CLI drives the local fmos command. Runner is expected to already route
// through the resolved execution context.
type CLI struct {
	Binary string
	Runner command.Runner
	Logger *logging.Logger
}

func (c *CLI) Name() string { return "fmos cli" }

func (c *CLI) binary() string {
	if c.Binary == "" {
		return "fmos"
	}
	return c.Binary
}

func (c *CLI) Get(ctx context.Context, path string) (doc Document, err error) {
	done := logging.DebugStart(c.Logger, "config get", "path=%s", path)
	defer func() { done(err) }()

	out, err := c.Runner.Run(ctx, c.binary(), "config", "get", path)
	if err != nil {
		if isNotFound(err) {
			c.Logger.Debug("%s not present, using empty document", path)
			return Document{}, nil
		}
		return nil, &CommandError{Op: "get", Path: path, Err: err}
	}

	doc, ok := Decode(out)
	if !ok {
		c.Logger.Warning("Unparseable output from fmos config get %s; treating as empty", path)
	}
	return doc, nil
}

func (c *CLI) Put(ctx context.Context, path string, doc Document) (err error) {
	done := logging.DebugStart(c.Logger, "config put", "path=%s", path)
	defer func() { done(err) }()

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if _, err := c.Runner.RunWithInput(ctx, payload, c.binary(), "config", "put", path); err != nil {
		return &CommandError{Op: "put", Path: path, Err: err}
	}
	return nil
}

func (c *CLI) Apply(ctx context.Context) (err error) {
	done := logging.DebugStart(c.Logger, "config apply", "")
	defer func() { done(err) }()

	if _, err := c.Runner.Run(ctx, c.binary(), "config", "apply"); err != nil {
		return &CommandError{Op: "apply", Err: err}
	}
	return nil
}

func isNotFound(err error) bool {
	var exitErr *command.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	msg := strings.ToLower(exitErr.Stderr)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no such")
}
