// Package input reads answers from the terminal for the plain (non-TUI)
// prompts. Every read honours context cancellation so Ctrl+C never leaves
// the process stuck on stdin.
package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/credentials"
)

// ErrInputAborted signals that the prompt was interrupted (Ctrl+C or stdin
// closed).
var ErrInputAborted = errors.New("input aborted")

// ErrPasswordMismatch is returned when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// IsAborted reports whether err means the operator gave up.
func IsAborted(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInputAborted) || errors.Is(err, context.Canceled)
}

// MapInputError turns EOF and closed descriptor errors into ErrInputAborted.
func MapInputError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return ErrInputAborted
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "use of closed file") ||
		strings.Contains(msg, "bad file descriptor") ||
		strings.Contains(msg, "file already closed") {
		return ErrInputAborted
	}
	return err
}

// readWithContext runs read in the background and returns early on ctx.
func readWithContext[T any](ctx context.Context, read func() (T, error)) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := read()
		ch <- result{v: v, err: MapInputError(err)}
	}()

	var zero T
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, context.DeadlineExceeded
		}
		return zero, ErrInputAborted
	case res := <-ch:
		return res.v, res.err
	}
}

// ReadLineWithContext reads one line, newline included.
func ReadLineWithContext(ctx context.Context, reader *bufio.Reader) (string, error) {
	return readWithContext(ctx, func() (string, error) {
		return reader.ReadString('\n')
	})
}

// ReadPasswordWithContext reads a password without echo using readPassword
// on fd.
func ReadPasswordWithContext(ctx context.Context, readPassword func(int) ([]byte, error), fd int) ([]byte, error) {
	if readPassword == nil {
		return nil, errors.New("readPassword function is nil")
	}
	return readWithContext(ctx, func() ([]byte, error) {
		return readPassword(fd)
	})
}

// Console prompts on a terminal. The zero value is not usable; use
// NewConsole or fill every field.
type Console struct {
	Reader       *bufio.Reader
	Out          io.Writer
	ReadPassword func(int) ([]byte, error)
	FD           int
}

// NewConsole prompts on stdin/stdout.
func NewConsole() *Console {
	return &Console{
		Reader:       bufio.NewReader(os.Stdin),
		Out:          os.Stdout,
		ReadPassword: term.ReadPassword,
		FD:           int(os.Stdin.Fd()),
	}
}

// Line asks for a value. An empty answer yields def.
func (c *Console) Line(ctx context.Context, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(c.Out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(c.Out, "%s: ", label)
	}
	line, err := ReadLineWithContext(ctx, c.Reader)
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// Password asks for a secret without echo.
func (c *Console) Password(ctx context.Context, label string) (string, error) {
	fmt.Fprintf(c.Out, "%s: ", label)
	b, err := ReadPasswordWithContext(ctx, c.ReadPassword, c.FD)
	fmt.Fprintln(c.Out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PromptCredentials asks for a username and a confirmed password.
func (c *Console) PromptCredentials(ctx context.Context, defaultUser string) (credentials.Credential, error) {
	fmt.Fprintln(c.Out, "FMOS API credentials")
	user, err := c.Line(ctx, "Username", defaultUser)
	if err != nil {
		return credentials.Credential{}, err
	}
	pass, err := c.Password(ctx, "Password")
	if err != nil {
		return credentials.Credential{}, err
	}
	confirm, err := c.Password(ctx, "Confirm password")
	if err != nil {
		return credentials.Credential{}, err
	}
	if pass != confirm {
		return credentials.Credential{}, ErrPasswordMismatch
	}
	cred := credentials.Credential{Username: user, Password: pass}
	if !cred.Valid() {
		return credentials.Credential{}, errors.New("username and password cannot be empty")
	}
	return cred, nil
}
