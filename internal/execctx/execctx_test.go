package execctx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/testutil"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

// staticDirs returns a fixed home directory listing.
type staticDirs []string

func (s staticDirs) ListDirs(context.Context, string) ([]string, error) {
	return append([]string(nil), s...), nil
}

func stubProcess(t *testing.T, euid int, name string, available ...Method) {
	t.Helper()
	prevEUID, prevUser, prevLook := getEUIDFunc, currentUserFunc, lookPathFunc
	t.Cleanup(func() {
		getEUIDFunc, currentUserFunc, lookPathFunc = prevEUID, prevUser, prevLook
	})

	getEUIDFunc = func() int { return euid }
	currentUserFunc = func() (string, error) { return name, nil }
	have := map[string]bool{}
	for _, m := range available {
		have[string(m)] = true
	}
	lookPathFunc = func(file string) (string, error) {
		if have[file] {
			return "/usr/bin/" + file, nil
		}
		return "", errors.New("not found")
	}
}

func TestResolveAdminStrategyOrder(t *testing.T) {
	ctx := context.Background()
	lister := staticDirs{"zeta", "lost+found", "beta"}

	tests := []struct {
		name       string
		strategies []Strategy
		want       Resolution
	}{
		{
			name: "explicit wins",
			strategies: []Strategy{
				Explicit("operator"),
				Caller{Identity: "admin"},
			},
			want: Resolution{Identity: "operator", Kind: Found, Strategy: "explicit"},
		},
		{
			name: "non elevated caller",
			strategies: []Strategy{
				Explicit(""),
				Caller{Identity: "fwadmin"},
				HomePath{Path: "/home/other/bin/tool"},
			},
			want: Resolution{Identity: "fwadmin", Kind: Found, Strategy: "caller"},
		},
		{
			name: "elevated caller falls through to artifact path",
			strategies: []Strategy{
				Caller{Identity: "root", Elevated: true},
				HomePath{Path: "/home/fwadmin/scripts/tool"},
				HomeDirs{Lister: lister},
			},
			want: Resolution{Identity: "fwadmin", Kind: Found, Strategy: "artifact-path"},
		},
		{
			name: "first sorted home directory",
			strategies: []Strategy{
				Caller{Identity: "root", Elevated: true},
				HomePath{Path: "/usr/local/sbin/tool"},
				HomeDirs{Lister: lister},
			},
			want: Resolution{Identity: "beta", Kind: Found, Strategy: "home-directory"},
		},
		{
			name: "default",
			strategies: []Strategy{
				Caller{Identity: "root", Elevated: true},
				HomePath{Path: "/opt/tool"},
				HomeDirs{Lister: staticDirs{"lost+found"}},
			},
			want: Resolution{Identity: DefaultAdmin, Kind: Default},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveAdmin(ctx, DefaultAdmin, tt.strategies...))
		})
	}
}

func TestHomePathEdgeCases(t *testing.T) {
	ctx := context.Background()
	_, ok := HomePath{Path: "/home/tool"}.Lookup(ctx)
	assert.False(t, ok, "a file directly under /home names no user directory")

	id, ok := HomePath{Path: "/srv/users/ops/bin/tool", HomeRoot: "/srv/users"}.Lookup(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ops", id)

	_, ok = HomePath{Path: "/homework/x/tool"}.Lookup(ctx)
	assert.False(t, ok)
}

func TestInvalidIdentitiesAreSkipped(t *testing.T) {
	res := ResolveAdmin(context.Background(), "", Explicit("bad name"), Caller{Identity: "root"})
	assert.Equal(t, Resolution{Identity: DefaultAdmin, Kind: Default}, res)
}

func TestOSDirLister(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "fwadmin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644))

	dirs, err := OSDirLister{}.ListDirs(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"fwadmin"}, dirs)

	id, ok := HomeDirs{Root: root, Lister: OSDirLister{}}.Lookup(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "fwadmin", id)
}

func TestResolveNonElevatedIsDirect(t *testing.T) {
	stubProcess(t, 1000, "fwadmin")

	c, err := Resolve(context.Background(), Options{Method: types.ConfigMethodCLI, SourcePath: "/home/fwadmin/tool", Lister: staticDirs{}})
	require.NoError(t, err)
	assert.False(t, c.Elevated)
	assert.False(t, c.Routed())
	assert.Equal(t, "fwadmin", c.TargetIdentity)
	assert.Equal(t, "fwadmin", c.Admin.Identity)
	assert.Nil(t, c.CrontabArgs())
}

func TestResolveElevatedPrefersRunuser(t *testing.T) {
	stubProcess(t, 0, "root", Su, Sudo, Runuser)

	c, err := Resolve(context.Background(), Options{Method: types.ConfigMethodCLI, SourcePath: "/home/fwadmin/tool", Lister: staticDirs{}})
	require.NoError(t, err)
	assert.True(t, c.Elevated)
	assert.Equal(t, Runuser, c.Routing.Method)
	assert.Equal(t, "fwadmin", c.TargetIdentity)
	assert.Equal(t, []string{"-u", "fwadmin"}, c.CrontabArgs())
}

func TestResolveElevatedFallsBackToSudoThenSu(t *testing.T) {
	stubProcess(t, 0, "root", Sudo, Su)
	c, err := Resolve(context.Background(), Options{Method: types.ConfigMethodCLI, ExplicitAdmin: "ops", Lister: staticDirs{}})
	require.NoError(t, err)
	assert.Equal(t, Sudo, c.Routing.Method)

	stubProcess(t, 0, "root", Su)
	c, err = Resolve(context.Background(), Options{Method: types.ConfigMethodCLI, ExplicitAdmin: "ops", Lister: staticDirs{}})
	require.NoError(t, err)
	assert.Equal(t, Su, c.Routing.Method)
}

func TestResolveElevatedWithoutPrimitives(t *testing.T) {
	stubProcess(t, 0, "root")

	_, err := Resolve(context.Background(), Options{Method: types.ConfigMethodCLI, Lister: staticDirs{"fwadmin"}})
	require.Error(t, err)
	assert.True(t, IsRoutingError(err))

	var re *RoutingError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "fwadmin", re.Target)
	assert.Contains(t, re.Hint(), "--use-api")
}

func TestResolveElevatedWithAPIDoesNotSwitch(t *testing.T) {
	stubProcess(t, 0, "root")

	c, err := Resolve(context.Background(), Options{Method: types.ConfigMethodAPI, Lister: staticDirs{"fwadmin"}})
	require.NoError(t, err)
	assert.False(t, c.Routed())
	assert.Equal(t, "root", c.TargetIdentity)
	assert.Equal(t, "fwadmin", c.Admin.Identity)
	assert.Equal(t, []string{"-u", "fwadmin"}, c.CrontabArgs())
}

func TestRoutingWrap(t *testing.T) {
	args := []string{"config", "get", "os/health"}

	name, out := Routing{Method: Runuser, Target: "fwadmin", Binary: "/sbin/runuser"}.Wrap("fmos", args)
	assert.Equal(t, "/sbin/runuser", name)
	assert.Equal(t, []string{"-u", "fwadmin", "--", "fmos", "config", "get", "os/health"}, out)

	name, out = Routing{Method: Sudo, Target: "fwadmin"}.Wrap("fmos", args)
	assert.Equal(t, "sudo", name)
	assert.Equal(t, []string{"-n", "-u", "fwadmin", "--", "fmos", "config", "get", "os/health"}, out)

	name, out = Routing{Method: Su, Target: "fwadmin"}.Wrap("fmos", []string{"config", "put", "a b"})
	assert.Equal(t, "su", name)
	assert.Equal(t, []string{"-", "fwadmin", "-c", "fmos config put 'a b'"}, out)

	name, out = Routing{Method: Direct}.Wrap("fmos", args)
	assert.Equal(t, "fmos", name)
	assert.Equal(t, args, out)
}

func TestRoutedRunner(t *testing.T) {
	fake := &testutil.FakeRunner{}
	c := Context{Elevated: true, Routing: Routing{Method: Runuser, Target: "fwadmin", Binary: "runuser"}}

	r := c.Runner(fake)
	_, err := r.RunWithInput(context.Background(), []byte("{}"), "fmos", "config", "put", "os/health")
	require.NoError(t, err)
	assert.Equal(t, []string{"runuser -u fwadmin -- fmos config put os/health"}, fake.Lines())
	assert.Equal(t, "{}", string(fake.Calls[0].Stdin))

	direct := Context{Routing: Routing{Method: Direct}}
	assert.Same(t, fake, direct.Runner(fake))
}
