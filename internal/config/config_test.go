package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"NO_LOG", "NO_WAIT", "FMOS_API_USER", "FMOS_API_PASS", "CONFIG_METHOD",
		"LOADAVG_SOURCE", "LOADAVG_CONFIG", "LOADAVG_ADMIN_USER", "LOADAVG_SETTLE_DELAY",
		"LOADAVG_LEAD_MINUTES", "LOADAVG_MIRROR_PATH", "LOADAVG_LOG_LEVEL", "LOADAVG_DRIFT_CHECK",
		"LOADAVG_NO_LOG", "LOADAVG_NO_WAIT", "LOADAVG_CONFIG_METHOD", "LOADAVG_CREDS_PASSPHRASE",
	} {
		t.Setenv(name, "")
	}
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	exe := filepath.Join(dir, "loadavg-manager")

	s, err := Load(newFlags(t), exe)
	require.NoError(t, err)

	assert.Equal(t, exe, s.SourcePath)
	assert.Equal(t, dir, s.StateDir)
	assert.Equal(t, DefaultMirrorPath, s.MirrorPath)
	assert.Equal(t, types.ConfigMethodCLI, s.Method)
	assert.Equal(t, DefaultCLIPath, s.CLIPath)
	assert.Equal(t, DefaultAPIURL, s.APIURL)
	assert.True(t, s.APIInsecure)
	assert.Equal(t, DefaultCheckName, s.CheckName)
	assert.Equal(t, 5, s.LeadMinutes)
	assert.Equal(t, 15*time.Minute, s.SettleDelay)
	assert.True(t, s.DriftCheck)
	assert.False(t, s.NoWait)
	assert.True(t, s.LoggingActive())
	assert.Equal(t, types.LogLevelInfo, s.LogLevel)
	assert.Equal(t, filepath.Join(dir, LogFileName), s.LogPath())
	assert.Equal(t, filepath.Join(dir, CredentialsFileName), s.CredentialsPath())
	assert.Equal(t, filepath.Join(dir, SettingsFileName), s.SettingsPath())
}

func TestLoadLegacyEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("NO_LOG", "1")
	t.Setenv("NO_WAIT", "1")
	t.Setenv("FMOS_API_USER", "admin")
	t.Setenv("FMOS_API_PASS", "s3cret")
	t.Setenv("CONFIG_METHOD", "api")

	s, err := Load(newFlags(t), filepath.Join(t.TempDir(), "tool"))
	require.NoError(t, err)

	assert.True(t, s.NoLog)
	assert.False(t, s.LoggingActive())
	assert.True(t, s.NoWait)
	assert.Equal(t, "admin", s.APIUser)
	assert.Equal(t, "s3cret", s.APIPass)
	assert.Equal(t, types.ConfigMethodAPI, s.Method)
}

func TestLoadPrefixedEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOADAVG_SETTLE_DELAY", "0")
	t.Setenv("LOADAVG_LEAD_MINUTES", "10")
	t.Setenv("LOADAVG_ADMIN_USER", "operator")
	t.Setenv("LOADAVG_DRIFT_CHECK", "false")

	s, err := Load(newFlags(t), filepath.Join(t.TempDir(), "tool"))
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), s.SettleDelay)
	assert.Equal(t, 10, s.LeadMinutes)
	assert.Equal(t, "operator", s.AdminUser)
	assert.False(t, s.DriftCheck)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOADAVG_ADMIN_USER", "from-env")
	source := filepath.Join(t.TempDir(), "bin", "tool")

	s, err := Load(newFlags(t,
		"--admin-user", "from-flag",
		"--use-api",
		"--no-wait",
		"--source", source,
		"--log-level", "debug",
		"--cli",
	), "/usr/local/sbin/other")
	require.NoError(t, err)

	assert.Equal(t, "from-flag", s.AdminUser)
	assert.Equal(t, types.ConfigMethodAPI, s.Method)
	assert.True(t, s.NoWait)
	assert.Equal(t, source, s.SourcePath)
	assert.Equal(t, filepath.Dir(source), s.StateDir)
	assert.Equal(t, types.LogLevelDebug, s.LogLevel)
	assert.True(t, s.PlainPrompts)
}

func TestSettingsFileNextToSource(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := "settle_delay: 5m\nmirror_path: /opt/fmos/loadavg\nlog_enabled: false\nconfig_method: api\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFileName), []byte(content), 0o644))

	s, err := Load(newFlags(t), filepath.Join(dir, "tool"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, s.SettleDelay)
	assert.Equal(t, "/opt/fmos/loadavg", s.MirrorPath)
	assert.False(t, s.LogEnabled)
	assert.False(t, s.LoggingActive())
	assert.Equal(t, types.ConfigMethodAPI, s.Method)
}

func TestEnvironmentOverridesSettingsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFileName), []byte("settle_delay: 5m\n"), 0o644))
	t.Setenv("LOADAVG_SETTLE_DELAY", "30s")

	s, err := Load(nil, filepath.Join(dir, "tool"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, s.SettleDelay)
}

func TestExplicitConfigMustExist(t *testing.T) {
	clearEnv(t)
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")), "/opt/tool")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}

func TestMalformedSettingsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFileName), []byte("settle_delay: [\n"), 0o644))

	_, err := Load(nil, filepath.Join(dir, "tool"))
	require.Error(t, err)
}

func TestValidationRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOADAVG_LEAD_MINUTES", "75")

	_, err := Load(nil, filepath.Join(t.TempDir(), "tool"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LeadMinutes")
}

func TestValidationRejectsMirrorEqualToSource(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	source := filepath.Join(dir, "tool")
	t.Setenv("LOADAVG_MIRROR_PATH", source)

	_, err := Load(nil, source)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MirrorPath")
}

func TestLoadRequiresSource(t *testing.T) {
	clearEnv(t)
	_, err := Load(nil, "")
	require.Error(t, err)
}

func TestSaveLoggingPreservesOtherKeys(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, SettingsFileName)
	require.NoError(t, os.WriteFile(path, []byte("settle_delay: 5m\n"), 0o644))

	require.NoError(t, SaveLogging(path, false))

	s, err := Load(nil, filepath.Join(dir, "tool"))
	require.NoError(t, err)
	assert.False(t, s.LogEnabled)
	assert.Equal(t, 5*time.Minute, s.SettleDelay)

	require.NoError(t, SaveLogging(path, true))
	s, err = Load(nil, filepath.Join(dir, "tool"))
	require.NoError(t, err)
	assert.True(t, s.LogEnabled)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestSaveLoggingCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFileName)
	require.NoError(t, SaveLogging(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "log_enabled: false")
}
