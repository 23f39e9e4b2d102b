package testutil

import (
	"context"
	"sync"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/command"
)

var _ command.Runner = (*FakeRunner)(nil)

// Call is a recorded invocation of a FakeRunner.
type Call struct {
	Line  string
	Stdin []byte
}

// FakeRunner is a command.Runner that records invocations and returns
// predefined outputs/errors keyed by the rendered command line. A Handler,
// when set, takes precedence.
type FakeRunner struct {
	mu      sync.Mutex
	Outputs map[string][]byte
	Errors  map[string]error
	Handler func(line string, stdin []byte) ([]byte, error)
	Calls   []Call
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f.RunWithInput(ctx, nil, name, args...)
}

func (f *FakeRunner) RunWithInput(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	line := command.Line(name, args)
	f.mu.Lock()
	f.Calls = append(f.Calls, Call{Line: line, Stdin: append([]byte(nil), stdin...)})
	handler := f.Handler
	out, hasOut := f.Outputs[line]
	err, hasErr := f.Errors[line]
	f.mu.Unlock()

	if handler != nil {
		return handler(line, stdin)
	}
	if hasErr {
		return out, err
	}
	if hasOut {
		return out, nil
	}
	return nil, nil
}

// Expect registers the output returned for line.
func (f *FakeRunner) Expect(line string, output []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Outputs == nil {
		f.Outputs = make(map[string][]byte)
	}
	f.Outputs[line] = output
}

// Fail registers the error returned for line.
func (f *FakeRunner) Fail(line string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors == nil {
		f.Errors = make(map[string]error)
	}
	f.Errors[line] = err
}

// Lines returns the rendered command lines in call order.
func (f *FakeRunner) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		lines = append(lines, c.Line)
	}
	return lines
}
