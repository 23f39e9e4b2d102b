// Package command runs external programs (vendor CLI, crontab, identity
// switching helpers) behind a small interface so callers can be tested
// without spawning processes.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode"
)

// Runner executes system commands and returns their stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	RunWithInput(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// ExitError describes a command that ran but did not succeed. Stderr is
// kept (trimmed) so callers can recognise well-known messages such as
// "no crontab for <user>".
type ExitError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s failed", Line(e.Name, e.Args))
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s (exit %d)", msg, e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// OS is the Runner backed by os/exec.
type OS struct{}

func (OS) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return run(ctx, nil, name, args)
}

func (OS) RunWithInput(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	return run(ctx, stdin, name, args)
}

func run(ctx context.Context, stdin []byte, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout.Bytes(), &ExitError{
			Name:     name,
			Args:     append([]string(nil), args...),
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// Line renders a command for logs and error messages.
func Line(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// ShellQuote quotes s for a POSIX shell using single quotes.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuoting) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// SplitWords splits a shell command line into words, undoing the quoting
// ShellQuote applies. Single quotes are literal; double quotes and
// backslashes follow sh rules. Unterminated quotes run to the end.
func SplitWords(line string) []string {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == '\\':
			escaped = true
			inWord = true
		case unicode.IsSpace(r):
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words
}

// HasWord reports whether any word of line equals one of candidates.
// Empty candidates never match.
func HasWord(line string, candidates ...string) bool {
	for _, w := range SplitWords(line) {
		for _, c := range candidates {
			if c != "" && w == c {
				return true
			}
		}
	}
	return false
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./=:,@%+", r)
}
