// Package execctx determines who is running the program and how calls to
// the fmos CLI must be routed. The backup subsystem runs completion hooks
// elevated, while the fmos CLI only accepts the appliance admin identity.
package execctx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strings"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/command"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

var (
	getEUIDFunc     = os.Geteuid
	currentUserFunc = currentUserName
	lookPathFunc    = exec.LookPath
)

func currentUserName() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// Method is an identity switching primitive.
type Method string

const (
	Direct  Method = "direct"
	Runuser Method = "runuser"
	Sudo    Method = "sudo"
	Su      Method = "su"
)

// routingPreference lists switching primitives from most to least
// preferred. su is last because it starts a login shell.
var routingPreference = []Method{Runuser, Sudo, Su}

// Routing describes how a command is re-executed under Target.
type Routing struct {
	Method Method
	Target string
	Binary string
}

// Wrap rewrites name/args so they run under the routed identity.
func (r Routing) Wrap(name string, args []string) (string, []string) {
	bin := r.Binary
	if bin == "" {
		bin = string(r.Method)
	}
	switch r.Method {
	case Runuser:
		return bin, append([]string{"-u", r.Target, "--", name}, args...)
	case Sudo:
		return bin, append([]string{"-n", "-u", r.Target, "--", name}, args...)
	case Su:
		parts := make([]string, 0, len(args)+1)
		parts = append(parts, command.ShellQuote(name))
		for _, a := range args {
			parts = append(parts, command.ShellQuote(a))
		}
		return bin, []string{"-", r.Target, "-c", strings.Join(parts, " ")}
	default:
		return name, args
	}
}

// RoutingError is returned when the fmos CLI must be reached as another
// identity and no switching primitive is installed.
type RoutingError struct {
	Target string
	Tried  []Method
}

func (e *RoutingError) Error() string {
	tried := make([]string, 0, len(e.Tried))
	for _, m := range e.Tried {
		tried = append(tried, string(m))
	}
	return fmt.Sprintf("cannot run the fmos CLI as %q: none of %s is available", e.Target, strings.Join(tried, ", "))
}

// Hint returns the remediation shown to the operator.
func (e *RoutingError) Hint() string {
	return fmt.Sprintf("install runuser (util-linux) or sudo, run the command as %s directly, or switch to the REST API with --use-api", e.Target)
}

// Context is the per-invocation execution context.
type Context struct {
	CallerIdentity string
	Elevated       bool
	TargetIdentity string
	Admin          Resolution
	Routing        Routing
}

// Routed reports whether CLI calls are re-executed as another identity.
func (c Context) Routed() bool {
	return c.Routing.Method != "" && c.Routing.Method != Direct
}

// CrontabArgs returns the crontab(1) arguments that address the job table
// owned by the admin identity.
func (c Context) CrontabArgs() []string {
	if c.Elevated {
		return []string{"-u", c.Admin.Identity}
	}
	return nil
}

// Runner wraps base so commands go through the resolved routing.
func (c Context) Runner(base command.Runner) command.Runner {
	if !c.Routed() {
		return base
	}
	return &RoutedRunner{Base: base, Routing: c.Routing}
}

// Options feeds Resolve. Zero values select the OS implementations.
type Options struct {
	Method        types.ConfigMethod
	ExplicitAdmin string
	SourcePath    string
	HomeRoot      string
	Lister        DirLister
}

// Resolve computes the execution context.
func Resolve(ctx context.Context, opts Options) (Context, error) {
	caller, err := currentUserFunc()
	if err != nil {
		caller = ""
	}
	elevated := getEUIDFunc() == 0
	if elevated && caller == "" {
		caller = "root"
	}

	lister := opts.Lister
	if lister == nil {
		lister = OSDirLister{}
	}
	admin := ResolveAdmin(ctx, DefaultAdmin,
		Explicit(opts.ExplicitAdmin),
		Caller{Identity: caller, Elevated: elevated},
		HomePath{Path: opts.SourcePath, HomeRoot: opts.HomeRoot},
		HomeDirs{Root: opts.HomeRoot, Lister: lister},
	)

	out := Context{
		CallerIdentity: caller,
		Elevated:       elevated,
		TargetIdentity: caller,
		Admin:          admin,
		Routing:        Routing{Method: Direct},
	}

	if !elevated || opts.Method == types.ConfigMethodAPI {
		return out, nil
	}

	routing, err := selectRouting(admin.Identity)
	if err != nil {
		return out, err
	}
	out.Routing = routing
	out.TargetIdentity = admin.Identity
	return out, nil
}

func selectRouting(target string) (Routing, error) {
	for _, m := range routingPreference {
		bin, err := lookPathFunc(string(m))
		if err != nil {
			continue
		}
		return Routing{Method: m, Target: target, Binary: bin}, nil
	}
	return Routing{}, &RoutingError{Target: target, Tried: append([]Method(nil), routingPreference...)}
}

// IsRoutingError reports whether err is a RoutingError.
func IsRoutingError(err error) bool {
	var re *RoutingError
	return errors.As(err, &re)
}

// RoutedRunner executes commands through a Routing.
type RoutedRunner struct {
	Base    command.Runner
	Routing Routing
}

func (r *RoutedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	n, a := r.Routing.Wrap(name, args)
	return r.Base.Run(ctx, n, a...)
}

func (r *RoutedRunner) RunWithInput(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	n, a := r.Routing.Wrap(name, args)
	return r.Base.RunWithInput(ctx, stdin, n, a...)
}
