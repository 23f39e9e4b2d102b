package execctx

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/safefs"
)

// DefaultAdmin is used when no admin identity can be inferred.
const DefaultAdmin = "admin"

// ResolutionKind tells whether an identity was discovered or defaulted.
type ResolutionKind int

const (
	Default ResolutionKind = iota
	Found
)

func (k ResolutionKind) String() string {
	if k == Found {
		return "found"
	}
	return "default"
}

// Resolution is the outcome of admin identity discovery.
type Resolution struct {
	Identity string
	Kind     ResolutionKind
	// Strategy names the strategy that produced a Found result.
	Strategy string
}

// Strategy is one step of admin identity discovery.
type Strategy interface {
	Name() string
	Lookup(ctx context.Context) (string, bool)
}

// ResolveAdmin returns the first identity produced by strategies, or
// Default(fallback) when none succeeds.
func ResolveAdmin(ctx context.Context, fallback string, strategies ...Strategy) Resolution {
	for _, s := range strategies {
		if s == nil {
			continue
		}
		if id, ok := s.Lookup(ctx); ok && validIdentity(id) {
			return Resolution{Identity: id, Kind: Found, Strategy: s.Name()}
		}
	}
	if fallback == "" {
		fallback = DefaultAdmin
	}
	return Resolution{Identity: fallback, Kind: Default}
}

func validIdentity(id string) bool {
	if id == "" || id == "root" || strings.HasPrefix(id, "-") {
		return false
	}
	return !strings.ContainsAny(id, "/ \t\n'\"")
}

// Explicit returns the operator supplied identity.
type Explicit string

func (Explicit) Name() string { return "explicit" }

func (e Explicit) Lookup(context.Context) (string, bool) {
	id := strings.TrimSpace(string(e))
	return id, id != ""
}

// Caller returns the invoking identity when it is not elevated.
type Caller struct {
	Identity string
	Elevated bool
}

func (Caller) Name() string { return "caller" }

func (c Caller) Lookup(context.Context) (string, bool) {
	if c.Elevated || c.Identity == "" {
		return "", false
	}
	return c.Identity, true
}

// HomePath infers the identity from a /home/<user>/ prefix of Path.
type HomePath struct {
	Path     string
	HomeRoot string
}

func (HomePath) Name() string { return "artifact-path" }

func (h HomePath) Lookup(context.Context) (string, bool) {
	root := h.HomeRoot
	if root == "" {
		root = "/home"
	}
	root = filepath.Clean(root) + string(filepath.Separator)
	clean := filepath.Clean(h.Path)
	if !strings.HasPrefix(clean, root) {
		return "", false
	}
	rest := strings.TrimPrefix(clean, root)
	user, _, found := strings.Cut(rest, string(filepath.Separator))
	if !found || user == "" {
		return "", false
	}
	return user, true
}

// DirLister enumerates candidate home directories.
type DirLister interface {
	ListDirs(ctx context.Context, root string) ([]string, error)
}

// HomeDirs picks the first (sorted) directory under Root.
type HomeDirs struct {
	Root   string
	Lister DirLister
}

func (HomeDirs) Name() string { return "home-directory" }

var ignoredHomeDirs = map[string]bool{
	"lost+found": true,
	"root":       true,
}

func (h HomeDirs) Lookup(ctx context.Context) (string, bool) {
	if h.Lister == nil {
		return "", false
	}
	root := h.Root
	if root == "" {
		root = "/home"
	}
	dirs, err := h.Lister.ListDirs(ctx, root)
	if err != nil {
		return "", false
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		if ignoredHomeDirs[d] || strings.HasPrefix(d, ".") {
			continue
		}
		return d, true
	}
	return "", false
}

// OSDirLister lists directories with a bounded wait so a hung automount
// under /home cannot stall the hook.
type OSDirLister struct {
	Timeout time.Duration
}

func (l OSDirLister) ListDirs(ctx context.Context, root string) ([]string, error) {
	timeout := l.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	entries, err := safefs.ReadDir(ctx, root, timeout)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}
