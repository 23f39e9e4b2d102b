// Package config builds the immutable runtime settings from defaults, the
// optional settings file kept next to the artifact, the environment and the
// command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

const (
	// SettingsFileName is the optional YAML file read from the state directory.
	SettingsFileName = "loadavg_manager.yaml"
	// CredentialsFileName is the credential store kept in the state directory.
	CredentialsFileName = ".fmos_api_creds"
	// LogFileName is the log file kept in the state directory.
	LogFileName = "loadavg_check_manager.log"

	DefaultCheckName  = "fmos.health.checks.basic.LoadAvgCheck"
	DefaultAPIURL     = "https://localhost:55555/api"
	DefaultCLIPath    = "fmos"
	DefaultMirrorPath = "/usr/local/sbin/fmos-loadavg-manager"

	envPrefix = "LOADAVG"
)

// Flag names shared with the command tree.
const (
	FlagNoLog     = "no-log"
	FlagNoWait    = "no-wait"
	FlagUseAPI    = "use-api"
	FlagPlain     = "cli"
	FlagSource    = "source"
	FlagAdminUser = "admin-user"
	FlagConfig    = "config"
	FlagLogLevel  = "log-level"
)

// Settings is built once at process start and handed to every component by
// value. Components never consult the environment themselves.
type Settings struct {
	SourcePath string `validate:"required,startswith=/"`
	StateDir   string `validate:"required"`
	ConfigFile string
	MirrorPath string `validate:"required,startswith=/,nefield=SourcePath"`

	Method    types.ConfigMethod `validate:"oneof=cli api"`
	AdminUser string
	CLIPath   string `validate:"required"`

	APIURL       string        `validate:"required,url"`
	APIInsecure  bool
	APITimeout   time.Duration `validate:"gt=0"`
	ApplyTimeout time.Duration `validate:"gt=0"`
	APIUser      string
	APIPass      string

	CheckName   string        `validate:"required"`
	LeadMinutes int           `validate:"gte=0,lte=59"`
	SettleDelay time.Duration `validate:"gte=0"`
	DriftCheck  bool
	NoWait      bool

	// LogEnabled is the persisted preference; NoLog silences one invocation.
	LogEnabled bool
	NoLog      bool
	LogLevel   types.LogLevel

	PlainPrompts    bool
	CredsPassphrase string
}

// LoggingActive reports whether the log file should be written for this run.
func (s Settings) LoggingActive() bool {
	return s.LogEnabled && !s.NoLog
}

// LogPath returns the log file location.
func (s Settings) LogPath() string {
	return filepath.Join(s.StateDir, LogFileName)
}

// CredentialsPath returns the credential store location.
func (s Settings) CredentialsPath() string {
	return filepath.Join(s.StateDir, CredentialsFileName)
}

// SettingsPath returns the settings file location (explicit --config wins).
func (s Settings) SettingsPath() string {
	if s.ConfigFile != "" {
		return s.ConfigFile
	}
	return filepath.Join(s.StateDir, SettingsFileName)
}

type rawSettings struct {
	Source          string        `mapstructure:"source"`
	Config          string        `mapstructure:"config"`
	MirrorPath      string        `mapstructure:"mirror_path"`
	ConfigMethod    string        `mapstructure:"config_method"`
	UseAPI          bool          `mapstructure:"use_api"`
	AdminUser       string        `mapstructure:"admin_user"`
	FMOSCLI         string        `mapstructure:"fmos_cli"`
	APIURL          string        `mapstructure:"api_url"`
	APIInsecure     bool          `mapstructure:"api_insecure"`
	APITimeout      time.Duration `mapstructure:"api_timeout"`
	ApplyTimeout    time.Duration `mapstructure:"apply_timeout"`
	APIUser         string        `mapstructure:"api_user"`
	APIPass         string        `mapstructure:"api_pass"`
	CheckName       string        `mapstructure:"check_name"`
	LeadMinutes     int           `mapstructure:"lead_minutes"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	DriftCheck      bool          `mapstructure:"drift_check"`
	NoWait          bool          `mapstructure:"no_wait"`
	LogEnabled      bool          `mapstructure:"log_enabled"`
	NoLog           bool          `mapstructure:"no_log"`
	LogLevel        string        `mapstructure:"log_level"`
	Plain           bool          `mapstructure:"plain_prompts"`
	CredsPassphrase string        `mapstructure:"creds_passphrase"`
}

func defaults() map[string]any {
	return map[string]any{
		"source":           "",
		"config":           "",
		"mirror_path":      DefaultMirrorPath,
		"config_method":    string(types.ConfigMethodCLI),
		"use_api":          false,
		"admin_user":       "",
		"fmos_cli":         DefaultCLIPath,
		"api_url":          DefaultAPIURL,
		"api_insecure":     true,
		"api_timeout":      10 * time.Second,
		"apply_timeout":    30 * time.Second,
		"api_user":         "",
		"api_pass":         "",
		"check_name":       DefaultCheckName,
		"lead_minutes":     5,
		"settle_delay":     15 * time.Minute,
		"drift_check":      true,
		"no_wait":          false,
		"log_enabled":      true,
		"no_log":           false,
		"log_level":        "info",
		"plain_prompts":    false,
		"creds_passphrase": "",
	}
}

// legacy environment names accepted alongside the LOADAVG_ prefixed ones.
var explicitEnv = map[string][]string{
	"no_log":        {"NO_LOG", "LOADAVG_NO_LOG"},
	"no_wait":       {"NO_WAIT", "LOADAVG_NO_WAIT"},
	"api_user":      {"FMOS_API_USER"},
	"api_pass":      {"FMOS_API_PASS"},
	"config_method": {"CONFIG_METHOD", "LOADAVG_CONFIG_METHOD"},
}

var flagKeys = map[string]string{
	FlagNoLog:     "no_log",
	FlagNoWait:    "no_wait",
	FlagUseAPI:    "use_api",
	FlagPlain:     "plain_prompts",
	FlagSource:    "source",
	FlagAdminUser: "admin_user",
	FlagConfig:    "config",
	FlagLogLevel:  "log_level",
}

// RegisterFlags declares the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Bool(FlagNoLog, false, "Disable logging for this execution")
	fs.Bool(FlagNoWait, false, "Skip the settling delay when enabling")
	fs.Bool(FlagUseAPI, false, "Use the REST API instead of the local fmos CLI")
	fs.Bool(FlagPlain, false, "Use plain terminal prompts instead of the interactive form")
	fs.String(FlagSource, "", "Path of the primary artifact (defaults to the running executable)")
	fs.String(FlagAdminUser, "", "Admin identity used to reach the fmos CLI when running elevated")
	fs.String(FlagConfig, "", "Settings file (defaults to "+SettingsFileName+" next to the artifact)")
	fs.String(FlagLogLevel, "", "Log level: debug, info, warning, error, critical")
}

// Load builds the settings. executable is the resolved path of the running
// binary and becomes the source path unless --source / LOADAVG_SOURCE say
// otherwise. fs may be nil.
func Load(fs *pflag.FlagSet, executable string) (Settings, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, names := range explicitEnv {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return Settings{}, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Settings{}, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	source := v.GetString("source")
	if source == "" {
		source = executable
	}
	if source == "" {
		return Settings{}, errors.New("cannot determine artifact source path")
	}
	source, err := filepath.Abs(source)
	if err != nil {
		return Settings{}, fmt.Errorf("resolve source path: %w", err)
	}
	stateDir := filepath.Dir(source)

	configFile := v.GetString("config")
	explicit := configFile != ""
	if !explicit {
		configFile = filepath.Join(stateDir, SettingsFileName)
	}
	if err := readSettingsFile(v, configFile, explicit); err != nil {
		return Settings{}, err
	}

	var raw rawSettings
	if err := v.Unmarshal(&raw); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	method := types.ParseConfigMethod(raw.ConfigMethod)
	if raw.UseAPI {
		method = types.ConfigMethodAPI
	}

	s := Settings{
		SourcePath:      source,
		StateDir:        stateDir,
		MirrorPath:      filepath.Clean(raw.MirrorPath),
		Method:          method,
		AdminUser:       strings.TrimSpace(raw.AdminUser),
		CLIPath:         raw.FMOSCLI,
		APIURL:          strings.TrimRight(raw.APIURL, "/"),
		APIInsecure:     raw.APIInsecure,
		APITimeout:      raw.APITimeout,
		ApplyTimeout:    raw.ApplyTimeout,
		APIUser:         raw.APIUser,
		APIPass:         raw.APIPass,
		CheckName:       raw.CheckName,
		LeadMinutes:     raw.LeadMinutes,
		SettleDelay:     raw.SettleDelay,
		DriftCheck:      raw.DriftCheck,
		NoWait:          raw.NoWait,
		LogEnabled:      raw.LogEnabled,
		NoLog:           raw.NoLog,
		LogLevel:        types.ParseLogLevel(raw.LogLevel),
		PlainPrompts:    raw.Plain,
		CredsPassphrase: raw.CredsPassphrase,
	}
	if explicit {
		s.ConfigFile = configFile
	}

	if err := Validate(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func readSettingsFile(v *viper.Viper, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("settings file %s: %w", path, err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read settings file %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks the invariants of s.
func Validate(s Settings) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(parts, "; "))
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
