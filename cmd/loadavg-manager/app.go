package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/config"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/execctx"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/input"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/logging"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/manager"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/tui/wizard"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/version"
)

const appName = "loadavg-manager"

// annotationBare marks commands that run without settings or a backend.
const annotationBare = "bare"

var isTerminal = term.IsTerminal

type app struct {
	stdout io.Writer
	stderr io.Writer

	executable  func() (string, error)
	resolveExec func(context.Context, execctx.Options) (execctx.Context, error)
	// configure lets tests replace collaborators before the manager is built.
	configure func(*manager.Deps)
	now       func() time.Time

	settings config.Settings
	logger   *logging.Logger
	mgr      *manager.Manager
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		executable:  executablePath,
		resolveExec: execctx.Resolve,
		now:         time.Now,
	}
}

func executablePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.CloseLogFile()
	}
}

func (a *app) execute(ctx context.Context, args []string) types.ExitCode {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	code := exitCodeFor(err)
	if err != nil {
		a.report(err, code)
	}
	return code
}

func (a *app) report(err error, code types.ExitCode) {
	if code == types.ExitInterrupted {
		fmt.Fprintln(a.stderr, "Interrupted")
		if a.logger != nil {
			a.logger.Warning("Interrupted: %v", err)
		}
		return
	}
	if a.logger != nil {
		a.logger.Error("%v", err)
	} else {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}
	var routing *execctx.RoutingError
	if errors.As(err, &routing) {
		fmt.Fprintf(a.stderr, "Hint: %s\n", routing.Hint())
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Suppress the FMOS LoadAvgCheck around the nightly backup",
		Long: "Disables the FMOS load average health check shortly before the automatic\n" +
			"backup starts and enables it again once the backup has finished and the\n" +
			"load has settled.",
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Annotations:       map[string]string{annotationBare: "true"},
		PersistentPreRunE: a.prepare,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{msg: fmt.Sprintf("unknown command %q for %q", args[0], appName)}
			}
			_ = cmd.Usage()
			return &usageError{msg: "no command given"}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	config.RegisterFlags(root.PersistentFlags())
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	root.AddCommand(
		a.actionCommand(types.ActionDisable, "Add the check to the ignore list", func(ctx context.Context) error {
			return a.mgr.Disable(ctx)
		}),
		a.actionCommand(types.ActionEnable, "Remove the check from the ignore list after the settling delay", func(ctx context.Context) error {
			return a.mgr.Enable(ctx)
		}),
		a.actionCommand(types.ActionSetup, "Install the mirror, the cronjob and the post-backup command", a.setup),
		a.actionCommand(types.ActionCleanup, "Remove everything setup installed and enable the check", func(ctx context.Context) error {
			return a.mgr.Cleanup(ctx)
		}),
		a.actionCommand(types.ActionStatus, "Show the current state", a.status),
		a.actionCommand(types.ActionSync, "Refresh the mirror from the source artifact", a.sync),
		a.actionCommand(types.ActionCredentials, "Prompt for, test and store API credentials", func(ctx context.Context) error {
			return a.mgr.Credentials(ctx)
		}),
		a.loggingCommand(),
		a.versionCommand(),
	)
	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{msg: fmt.Sprintf("%s takes no arguments, got %q", cmd.Name(), args)}
	}
	return nil
}

func (a *app) actionCommand(action types.Action, short string, run func(context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   action.String(),
		Short: short,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func (a *app) loggingCommand() *cobra.Command {
	return &cobra.Command{
		Use:       types.ActionLogging.String() + " on|off",
		Short:     "Turn the log file on or off for future runs",
		ValidArgs: []string{"on", "off"},
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
				return &usageError{msg: "logging expects exactly one argument: on or off"}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mgr.SetLogging(cmd.Context(), args[0] == "on")
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        noArgs,
		Annotations: map[string]string{annotationBare: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version.Detailed())
		},
	}
}

// prepare loads the settings, opens the log and builds the manager for
// every command that needs them.
func (a *app) prepare(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationBare] != "" || cmd.Name() == "help" {
		return nil
	}
	ctx := cmd.Context()

	exe, err := a.executable()
	if err != nil {
		return &configError{err: fmt.Errorf("resolve executable: %w", err)}
	}
	settings, err := config.Load(cmd.Flags(), exe)
	if err != nil {
		return &configError{err: err}
	}
	a.settings = settings

	a.logger = logging.New(settings.LogLevel, a.colorOutput())
	a.logger.SetOutput(a.stdout)
	a.logger.SetTag(fmt.Sprintf("%s pid=%d", cmd.Name(), os.Getpid()))
	if settings.LoggingActive() {
		if err := a.logger.OpenLogFile(settings.LogPath()); err != nil {
			a.logger.Warning("Cannot open log file %s: %v", settings.LogPath(), err)
		}
	}
	a.logger.Debug("%s %s: source=%s method=%s", appName, cmd.Name(), settings.SourcePath, settings.Method)

	ex, err := a.resolveExec(ctx, execctx.Options{
		Method:        settings.Method,
		ExplicitAdmin: settings.AdminUser,
		SourcePath:    settings.SourcePath,
		HomeRoot:      "/home",
	})
	if err != nil {
		return err
	}
	a.logger.Debug("Execution context: caller=%s elevated=%t admin=%s (%s) routing=%s",
		ex.CallerIdentity, ex.Elevated, ex.Admin.Identity, ex.Admin.Kind, ex.Routing.Method)

	deps := manager.Deps{
		Logger:   a.logger,
		Settings: settings,
		Exec:     ex,
		Prompter: a.prompter(settings),
		Now:      a.now,
	}
	if a.configure != nil {
		a.configure(&deps)
	}
	mgr, err := manager.New(deps)
	if err != nil {
		return err
	}
	a.mgr = mgr
	return nil
}

func (a *app) colorOutput() bool {
	f, ok := a.stdout.(*os.File)
	return ok && isTerminal(int(f.Fd()))
}

func (a *app) prompter(s config.Settings) manager.Prompter {
	if s.PlainPrompts || !isTerminal(int(os.Stdin.Fd())) {
		return input.NewConsole()
	}
	return wizard.CredentialsForm{APIURL: s.APIURL}
}

func (a *app) setup(ctx context.Context) error {
	if err := a.mgr.Setup(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout)
	renderStatus(a.stdout, a.mgr.Status(ctx), a.now())
	return nil
}

func (a *app) status(ctx context.Context) error {
	r := a.mgr.Status(ctx)
	renderStatus(a.stdout, r, a.now())
	return r.Err()
}

func (a *app) sync(ctx context.Context) error {
	changed, err := a.mgr.Sync(ctx)
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintf(a.stdout, "Mirror %s refreshed from %s\n", a.settings.MirrorPath, a.settings.SourcePath)
	} else {
		fmt.Fprintf(a.stdout, "Mirror %s is up to date\n", a.settings.MirrorPath)
	}
	return nil
}
