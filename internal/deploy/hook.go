package deploy

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/backend"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/command"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/cronjob"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/logging"
)

// Document keys of os/backup/post-backup.
const (
	HookRootKey   = "post_backup"
	BranchSuccess = "success"
	BranchFailure = "failure"
	RunCommandKey = "run-command"
	CommandKey    = "command"
	EnableAction  = "enable"
	envBinary     = "/usr/bin/env"
)

// Branches lists the hook branches our command is installed into.
var Branches = []string{BranchSuccess, BranchFailure}

// Invocation is the command line run by the backup completion hook.
type Invocation struct {
	Executable string
	Source     string
	ConfigFile string
	AdminUser  string
	UseAPI     bool
	NoLog      bool
}

// Args returns the arguments that follow the executable, without the
// trailing action.
func (i Invocation) Args() []string {
	var args []string
	if i.Source != "" {
		args = append(args, "--source", command.ShellQuote(i.Source))
	}
	if i.ConfigFile != "" {
		args = append(args, "--config", command.ShellQuote(i.ConfigFile))
	}
	if i.AdminUser != "" {
		args = append(args, "--admin-user", command.ShellQuote(i.AdminUser))
	}
	if i.UseAPI {
		args = append(args, "--use-api")
	}
	return args
}

// HookCommand renders the enable command written into the hook.
func (i Invocation) HookCommand() string {
	parts := []string{envBinary}
	if i.NoLog {
		parts = append(parts, "NO_LOG=1")
	}
	parts = append(parts, command.ShellQuote(i.Executable))
	parts = append(parts, i.Args()...)
	parts = append(parts, EnableAction)
	return strings.Join(parts, " ")
}

// JobCommand renders the disable command for the crontab entry.
func (i Invocation) JobCommand() string {
	return cronjob.BuildCommand(command.ShellQuote(i.Executable), i.Args(), i.NoLog)
}

// HookStatus is the read-only view of the completion hook.
type HookStatus struct {
	// Commands holds our command per branch.
	Commands map[string][]string
	// Foreign counts entries installed by something else.
	Foreign int
}

// Installed reports whether every branch carries our command.
func (s HookStatus) Installed() bool {
	for _, b := range Branches {
		if len(s.Commands[b]) == 0 {
			return false
		}
	}
	return true
}

// Partial reports whether only some branches carry our command.
func (s HookStatus) Partial() bool {
	n := 0
	for _, b := range Branches {
		if len(s.Commands[b]) > 0 {
			n++
		}
	}
	return n > 0 && n < len(Branches)
}

// Hook manages our entries in the backup completion hook. Entries are ours
// when their command references one of Paths.
type Hook struct {
	Backend backend.Backend
	Paths   []string
	Logger  *logging.Logger
}

func (h *Hook) owns(entry any) (string, bool) {
	m, ok := entry.(map[string]any)
	if !ok {
		return "", false
	}
	cmd, ok := m[CommandKey].(string)
	if !ok {
		return "", false
	}
	if command.HasWord(cmd, h.Paths...) {
		return cmd, true
	}
	return "", false
}

// InstallHook returns a copy of doc with cmd as our only entry in every
// branch. Foreign entries keep their order.
func InstallHook(doc backend.Document, cmd string, owns func(any) (string, bool)) backend.Document {
	out := backend.Clone(doc)
	root, _ := backend.Object(out, HookRootKey)
	if root == nil {
		root = map[string]any{}
	}
	for _, name := range Branches {
		branch, _ := backend.Object(root, name)
		if branch == nil {
			branch = map[string]any{}
		}
		entries := foreignEntries(branch, owns)
		entries = append(entries, map[string]any{CommandKey: cmd})
		branch[RunCommandKey] = entries
		root[name] = branch
	}
	out[HookRootKey] = root
	return out
}

// ClearHook returns a copy of doc without our entries. Branches left with
// nothing in them are removed.
func ClearHook(doc backend.Document, owns func(any) (string, bool)) backend.Document {
	out := backend.Clone(doc)
	root, ok := backend.Object(out, HookRootKey)
	if !ok {
		return out
	}
	for _, name := range Branches {
		branch, ok := backend.Object(root, name)
		if !ok {
			continue
		}
		if _, isList := branch[RunCommandKey].([]any); !isList {
			continue
		}
		entries := foreignEntries(branch, owns)
		if len(entries) == 0 {
			delete(branch, RunCommandKey)
		} else {
			branch[RunCommandKey] = entries
		}
		if len(branch) == 0 {
			delete(root, name)
		}
	}
	return out
}

func foreignEntries(branch map[string]any, owns func(any) (string, bool)) []any {
	list, _ := branch[RunCommandKey].([]any)
	kept := make([]any, 0, len(list)+1)
	for _, e := range list {
		if _, mine := owns(e); !mine {
			kept = append(kept, e)
		}
	}
	return kept
}

// Install writes cmd into both branches.
func (h *Hook) Install(ctx context.Context, cmd string) (bool, error) {
	return h.mutate(ctx, "install completion hook", func(doc backend.Document) backend.Document {
		return InstallHook(doc, cmd, h.owns)
	})
}

// Clear removes our entries. A missing hook is not an error.
func (h *Hook) Clear(ctx context.Context) (bool, error) {
	return h.mutate(ctx, "clear completion hook", func(doc backend.Document) backend.Document {
		return ClearHook(doc, h.owns)
	})
}

// SetLogging rewrites our entries so they carry (or drop) NO_LOG=1.
func (h *Hook) SetLogging(ctx context.Context, enabled bool) (bool, error) {
	return h.mutate(ctx, "update completion hook logging", func(doc backend.Document) backend.Document {
		out := backend.Clone(doc)
		root, ok := backend.Object(out, HookRootKey)
		if !ok {
			return out
		}
		for _, name := range Branches {
			branch, ok := backend.Object(root, name)
			if !ok {
				continue
			}
			list, _ := branch[RunCommandKey].([]any)
			for _, e := range list {
				if cmd, mine := h.owns(e); mine {
					e.(map[string]any)[CommandKey] = cronjob.WithLogging(cmd, enabled)
				}
			}
		}
		return out
	})
}

// Status reads the hook without changing it.
func (h *Hook) Status(ctx context.Context) (HookStatus, error) {
	st := HookStatus{Commands: map[string][]string{}}
	doc, err := h.Backend.Get(ctx, backend.PathPostBackup)
	if err != nil {
		return st, fmt.Errorf("read %s: %w", backend.PathPostBackup, err)
	}
	root, _ := backend.Object(doc, HookRootKey)
	for _, name := range Branches {
		branch, _ := backend.Object(root, name)
		list, _ := branch[RunCommandKey].([]any)
		for _, e := range list {
			if cmd, mine := h.owns(e); mine {
				st.Commands[name] = append(st.Commands[name], cmd)
			} else {
				st.Foreign++
			}
		}
	}
	return st, nil
}

func (h *Hook) mutate(ctx context.Context, action string, transform func(backend.Document) backend.Document) (bool, error) {
	current, err := h.Backend.Get(ctx, backend.PathPostBackup)
	if err != nil {
		return false, fmt.Errorf("%s: read %s: %w", action, backend.PathPostBackup, err)
	}
	if current == nil {
		current = backend.Document{}
	}
	next := transform(current)
	if reflect.DeepEqual(current, next) {
		h.Logger.Debug("%s: %s unchanged", action, backend.PathPostBackup)
		return false, nil
	}
	if err := backend.Commit(ctx, h.Backend, backend.PathPostBackup, next); err != nil {
		return false, fmt.Errorf("%s: %w", action, err)
	}
	return true, nil
}
