// Package zconfig loads the interpreter's runtime configuration file:
// default screen colours, whether structured logging is enabled, the
// recoverable-error policy, and the sound volume normalization factor.
// Grounded on the original interpreter's Config (lib/zm/config.rs),
// restructured around yaml.v3's unmarshal-into-struct idiom instead of
// the original's key-by-key serde_yaml::Value probing.
package zconfig

import (
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/ifzm/mxyzptlk/zerr"
	"github.com/ifzm/mxyzptlk/zmachine"
)

// ErrorHandling mirrors the original's ErrorHandling enum: how the
// interpreter reacts to a recoverable *zerr.RuntimeError.
type ErrorHandling string

const (
	ContinueWarnAlways ErrorHandling = "continue_warn_always"
	ContinueWarnOnce    ErrorHandling = "continue_warn_once"
	Ignore              ErrorHandling = "ignore"
	Abort               ErrorHandling = "abort"
)

// Policy maps the configured error handling mode onto the VM's own
// two-valued ErrorPolicy: abort becomes PolicyStrict, every other mode
// PolicyIgnore. Under PolicyIgnore the VM's Run loop logs each
// recoverable error code once at Warn level, so ignore,
// continue_warn_once and continue_warn_always all behave the same.
func (h ErrorHandling) Policy() zmachine.ErrorPolicy {
	if h == Abort {
		return zmachine.PolicyStrict
	}
	return zmachine.PolicyIgnore
}

// Config is the interpreter's runtime configuration, loaded from a
// YAML file and falling back to sensible defaults for anything absent.
type Config struct {
	Foreground    uint8         `yaml:"foreground"`
	Background    uint8         `yaml:"background"`
	Logging       bool          `yaml:"-"`
	LoggingRaw    string        `yaml:"logging"`
	ErrorHandling ErrorHandling `yaml:"error_handling"`
	VolumeFactor  float32       `yaml:"volume_factor"`
}

// Default returns the interpreter's built-in configuration: white text
// on a black background, logging off, warn-once on recoverable errors.
func Default() Config {
	return Config{
		Foreground:    9,
		Background:    2,
		Logging:       false,
		ErrorHandling: ContinueWarnOnce,
		VolumeFactor:  defaultVolumeFactor(),
	}
}

// defaultVolumeFactor picks a platform-appropriate normalization
// factor for sound_effect's volume argument, mirroring the original's
// per-OS defaults (Linux ALSA, Windows WASAPI, everything else).
func defaultVolumeFactor() float32 {
	switch runtime.GOOS {
	case "linux":
		return 8.0
	case "windows":
		return 12.0
	default:
		return 128.0
	}
}

// Load reads a YAML configuration file, overlaying any keys it finds
// onto Default(). A missing file is not an error; callers that want a
// config file to be mandatory should os.Stat it themselves first.
func Load(path string) (Config, *zerr.RuntimeError) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, zerr.Fatalf(zerr.ConfigError, "reading config file: %s", err)
	}

	raw := struct {
		Foreground    *uint8  `yaml:"foreground"`
		Background    *uint8  `yaml:"background"`
		Logging       *string `yaml:"logging"`
		ErrorHandling *string `yaml:"error_handling"`
		VolumeFactor  *float32 `yaml:"volume_factor"`
	}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, zerr.Recoverablef(zerr.ConfigError, "parsing config file: %s", err)
	}

	if raw.Foreground != nil {
		cfg.Foreground = *raw.Foreground
	}
	if raw.Background != nil {
		cfg.Background = *raw.Background
	}
	if raw.Logging != nil {
		cfg.Logging = *raw.Logging == "enabled"
	}
	if raw.ErrorHandling != nil {
		switch ErrorHandling(*raw.ErrorHandling) {
		case ContinueWarnAlways, ContinueWarnOnce, Ignore, Abort:
			cfg.ErrorHandling = ErrorHandling(*raw.ErrorHandling)
		}
	}
	if raw.VolumeFactor != nil {
		cfg.VolumeFactor = *raw.VolumeFactor
	}

	return cfg, nil
}
