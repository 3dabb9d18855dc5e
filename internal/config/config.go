// Package config loads and validates the swupdate configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name inside Dir().
const FileName = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. SWUPDATE_EXECUTION_OUTPUT.
const EnvPrefix = "SWUPDATE"

// ErrConfigExists is returned by WriteDefault when the file is present.
var ErrConfigExists = errors.New("config file already exists")

// Dir returns the swupdate config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/swupdate if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "swupdate"), nil
}

// Path returns cfgFile if set, else the default config file path.
func Path(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Config is the whole configuration tree. Every key can be overridden by an
// SWUPDATE_ environment variable named after its path.
type Config struct {
	OS        OSConfig        `mapstructure:"os" yaml:"os"`
	Language  LanguageConfig  `mapstructure:"language" yaml:"language"`
	Execution ExecutionConfig `mapstructure:"execution" yaml:"execution"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// OSConfig holds the per-operating-system package manager switches.
type OSConfig struct {
	Linux   LinuxConfig   `mapstructure:"linux" yaml:"linux"`
	Windows WindowsConfig `mapstructure:"windows" yaml:"windows"`
	MacOS   MacOSConfig   `mapstructure:"macos" yaml:"macos"`
}

// LinuxConfig enables the native and add-on package managers on Linux. Only
// the section matching the detected distribution is used for the native one.
type LinuxConfig struct {
	Arch       ArchConfig      `mapstructure:"arch" yaml:"arch"`
	Deb        PreferredConfig `mapstructure:"deb" yaml:"deb"`
	RPM        PreferredConfig `mapstructure:"rpm" yaml:"rpm"`
	Portage    bool            `mapstructure:"portage" yaml:"portage"`
	Eopkg      bool            `mapstructure:"eopkg" yaml:"eopkg"`
	NixChannel bool            `mapstructure:"nix_channel" yaml:"nix_channel"`
	Apk        bool            `mapstructure:"apk" yaml:"apk"`
	Snap       bool            `mapstructure:"snap" yaml:"snap"`
	Flatpak    bool            `mapstructure:"flatpak" yaml:"flatpak"`
	Brew       bool            `mapstructure:"brew" yaml:"brew"`
}

// ArchConfig covers the official repositories and the AUR separately.
type ArchConfig struct {
	Official          bool   `mapstructure:"official" yaml:"official"`
	AUR               bool   `mapstructure:"aur" yaml:"aur"`
	PreferredOfficial string `mapstructure:"preferred_official" yaml:"preferred_official"`
	PreferredAUR      string `mapstructure:"preferred_aur" yaml:"preferred_aur"`
}

// PreferredConfig is a family with an optional preferred program.
type PreferredConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Preferred string `mapstructure:"preferred" yaml:"preferred"`
}

// WindowsConfig enables Chocolatey and winget.
type WindowsConfig struct {
	Choco  bool `mapstructure:"choco" yaml:"choco"`
	Winget bool `mapstructure:"winget" yaml:"winget"`
}

// MacOSConfig enables Homebrew on macOS.
type MacOSConfig struct {
	Brew bool `mapstructure:"brew" yaml:"brew"`
}

// LanguageConfig selects the language toolchain updaters.
type LanguageConfig struct {
	Rust RustConfig `mapstructure:"rust" yaml:"rust"`
	JS   JSConfig   `mapstructure:"js" yaml:"js"`
}

// RustConfig selects rustup and cargo install-update. Both run when enabled.
type RustConfig struct {
	Rustup bool `mapstructure:"rustup" yaml:"rustup"`
	Cargo  bool `mapstructure:"cargo" yaml:"cargo"`
}

// JSConfig selects the global npm and yarn package updates.
type JSConfig struct {
	NPM  bool `mapstructure:"npm" yaml:"npm"`
	Yarn bool `mapstructure:"yarn" yaml:"yarn"`
}

// ExecutionConfig controls how update programs are started.
type ExecutionConfig struct {
	// Elevation is auto, none, or a launcher name.
	Elevation string `mapstructure:"elevation" yaml:"elevation" validate:"omitempty,oneof=auto none sudo doas pkexec run0"`
	Output    string `mapstructure:"output" yaml:"output" validate:"omitempty,oneof=stream capture"`
	// Timeout is a Go duration string; empty or "0" disables it.
	Timeout         string `mapstructure:"timeout" yaml:"timeout"`
	Parallel        bool   `mapstructure:"parallel" yaml:"parallel"`
	Jobs            int    `mapstructure:"jobs" yaml:"jobs" validate:"gte=0,lte=64"`
	PreferredPolicy string `mapstructure:"preferred_policy" yaml:"preferred_policy" validate:"omitempty,oneof=fallback strict"`
}

// TimeoutDuration parses Timeout.
func (e ExecutionConfig) TimeoutDuration() (time.Duration, error) {
	s := strings.TrimSpace(e.Timeout)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", e.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", e.Timeout)
	}
	return d, nil
}

// LogConfig sets the zerolog level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=console json"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Path overrides ~/.swupdate/history.db.
	Path string `mapstructure:"path" yaml:"path"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile, when set, receives a node-exporter textfile after each run.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// Default returns the configuration used when no file exists: every family
// enabled, with pacman, paru, apt and dnf preferred.
func Default() *Config {
	return &Config{
		OS: OSConfig{
			Linux: LinuxConfig{
				Arch: ArchConfig{
					Official:          true,
					AUR:               true,
					PreferredOfficial: "pacman",
					PreferredAUR:      "paru",
				},
				Deb:        PreferredConfig{Enabled: true, Preferred: "apt"},
				RPM:        PreferredConfig{Enabled: true, Preferred: "dnf"},
				Portage:    true,
				Eopkg:      true,
				NixChannel: true,
				Apk:        true,
				Snap:       true,
				Flatpak:    true,
				Brew:       true,
			},
			Windows: WindowsConfig{Choco: true, Winget: true},
			MacOS:   MacOSConfig{Brew: true},
		},
		Language: LanguageConfig{
			Rust: RustConfig{Rustup: true, Cargo: true},
			JS:   JSConfig{NPM: true, Yarn: true},
		},
		Execution: ExecutionConfig{
			Elevation:       "auto",
			Output:          "stream",
			Jobs:            4,
			PreferredPolicy: "fallback",
		},
		Log:     LogConfig{Level: "info", Format: "console"},
		History: HistoryConfig{Enabled: true},
	}
}

// setDefaults registers every key so that environment overrides apply
// even when the file does not mention them.
func setDefaults(v *viper.Viper, d *Config) {
	l := d.OS.Linux
	v.SetDefault("os.linux.arch.official", l.Arch.Official)
	v.SetDefault("os.linux.arch.aur", l.Arch.AUR)
	v.SetDefault("os.linux.arch.preferred_official", l.Arch.PreferredOfficial)
	v.SetDefault("os.linux.arch.preferred_aur", l.Arch.PreferredAUR)
	v.SetDefault("os.linux.deb.enabled", l.Deb.Enabled)
	v.SetDefault("os.linux.deb.preferred", l.Deb.Preferred)
	v.SetDefault("os.linux.rpm.enabled", l.RPM.Enabled)
	v.SetDefault("os.linux.rpm.preferred", l.RPM.Preferred)
	v.SetDefault("os.linux.portage", l.Portage)
	v.SetDefault("os.linux.eopkg", l.Eopkg)
	v.SetDefault("os.linux.nix_channel", l.NixChannel)
	v.SetDefault("os.linux.apk", l.Apk)
	v.SetDefault("os.linux.snap", l.Snap)
	v.SetDefault("os.linux.flatpak", l.Flatpak)
	v.SetDefault("os.linux.brew", l.Brew)

	v.SetDefault("os.windows.choco", d.OS.Windows.Choco)
	v.SetDefault("os.windows.winget", d.OS.Windows.Winget)
	v.SetDefault("os.macos.brew", d.OS.MacOS.Brew)

	v.SetDefault("language.rust.rustup", d.Language.Rust.Rustup)
	v.SetDefault("language.rust.cargo", d.Language.Rust.Cargo)
	v.SetDefault("language.js.npm", d.Language.JS.NPM)
	v.SetDefault("language.js.yarn", d.Language.JS.Yarn)

	v.SetDefault("execution.elevation", d.Execution.Elevation)
	v.SetDefault("execution.output", d.Execution.Output)
	v.SetDefault("execution.timeout", d.Execution.Timeout)
	v.SetDefault("execution.parallel", d.Execution.Parallel)
	v.SetDefault("execution.jobs", d.Execution.Jobs)
	v.SetDefault("execution.preferred_policy", d.Execution.PreferredPolicy)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// Load reads the config file at cfgFile (or the default path) and applies
// SWUPDATE_* environment overrides. A missing file yields the defaults.
func Load(cfgFile string) (*Config, error) {
	path, err := Path(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

const defaultHeader = `# swupdate configuration
# Environment variables override any key, e.g. SWUPDATE_EXECUTION_OUTPUT=capture.
`

// WriteDefault writes the default configuration to path. It never
// overwrites an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}

	data, err := Default().YAML()
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(defaultHeader); err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}
