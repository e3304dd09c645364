// Package config loads primlab's configuration from defaults, an optional
// YAML file, PRIMLAB_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/remiblancher/primlab/internal/backends/pkcs11"
	"github.com/remiblancher/primlab/internal/ctaudit"
	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/report"
	"github.com/remiblancher/primlab/internal/runner"
)

// EnvPrefix prefixes every environment variable; "audit.trials" is read
// from PRIMLAB_AUDIT_TRIALS.
const EnvPrefix = "PRIMLAB"

// DefaultRandomInputs is the number of randomized inputs per primitive.
const DefaultRandomInputs = 100

// Vectors locates test vectors.
type Vectors struct {
	// Paths lists extra vector files or directories.
	Paths []string `mapstructure:"paths"`
	// Embedded loads the built-in corpus.
	Embedded bool `mapstructure:"embedded"`
}

// Report controls report output.
type Report struct {
	Format string `mapstructure:"format"`
	// Output is a file path; empty writes to stdout.
	Output string `mapstructure:"output"`
	// SignKey is a PEM Ed25519 private key. When set, a COSE_Sign1 seal of
	// the report is written next to Output.
	SignKey string `mapstructure:"sign_key"`
}

// Journal controls the run journal.
type Journal struct {
	Path string `mapstructure:"path"`
}

// Server controls the HTTP surface.
type Server struct {
	Addr string `mapstructure:"addr"`
}

// Log controls technical logging.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the complete configuration of a run.
type Config struct {
	Seed         uint64        `mapstructure:"seed"`
	RandomInputs int           `mapstructure:"random_inputs"`
	Workers      int           `mapstructure:"workers"`
	CaseTimeout  time.Duration `mapstructure:"case_timeout"`
	// Primitives and Backends restrict a run; empty means everything.
	Primitives []string       `mapstructure:"primitives"`
	Backends   []string       `mapstructure:"backends"`
	Vectors    Vectors        `mapstructure:"vectors"`
	Audit      ctaudit.Config `mapstructure:"audit"`
	// Secrets overrides the default secret classification per primitive:
	// primitive -> field -> "secret" | "public".
	Secrets map[string]map[string]string `mapstructure:"secrets"`
	Journal Journal                      `mapstructure:"journal"`
	Report  Report                       `mapstructure:"report"`
	PKCS11  pkcs11.Config                `mapstructure:"pkcs11"`
	Server  Server                       `mapstructure:"server"`
	Log     Log                          `mapstructure:"log"`
}

// NewViper returns a viper instance carrying every default and bound to
// the environment.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	audit := ctaudit.DefaultConfig()

	v.SetDefault("seed", uint64(1))
	v.SetDefault("random_inputs", DefaultRandomInputs)
	v.SetDefault("workers", runtime.GOMAXPROCS(0))
	v.SetDefault("case_timeout", runner.DefaultCaseTimeout)
	v.SetDefault("primitives", []string{})
	v.SetDefault("backends", []string{})
	v.SetDefault("vectors.paths", []string{})
	v.SetDefault("vectors.embedded", true)

	v.SetDefault("audit.mode", string(audit.Mode))
	v.SetDefault("audit.trials", audit.Trials)
	v.SetDefault("audit.warmup", audit.Warmup)
	v.SetDefault("audit.threshold", audit.Threshold)
	v.SetDefault("audit.trim", audit.Trim)
	v.SetDefault("audit.noise_floor", audit.NoiseFloor)
	v.SetDefault("audit.pairs", audit.Pairs)
	v.SetDefault("audit.parallel", audit.Parallel)

	v.SetDefault("secrets", map[string]any{})
	v.SetDefault("journal.path", "")
	v.SetDefault("report.format", string(report.FormatText))
	v.SetDefault("report.output", "")
	v.SetDefault("report.sign_key", "")

	v.SetDefault("pkcs11.lib", "")
	v.SetDefault("pkcs11.token", "")
	v.SetDefault("pkcs11.token_serial", "")
	v.SetDefault("pkcs11.pin_env", "")

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration file at path, if any, into v and decodes
// the result. The returned configuration has been validated.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.Audit.Seed = cfg.Seed

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg, err := Load(NewViper(), "")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks every setting.
func (c *Config) Validate() error {
	var errs []error
	if c.RandomInputs < 0 {
		errs = append(errs, fmt.Errorf("random_inputs must not be negative, got %d", c.RandomInputs))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.CaseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("case_timeout must be positive, got %s", c.CaseTimeout))
	}
	if !c.Vectors.Embedded && len(c.Vectors.Paths) == 0 {
		errs = append(errs, errors.New("no vector source: enable vectors.embedded or set vectors.paths"))
	}
	if err := c.Audit.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Overrides(); err != nil {
		errs = append(errs, err)
	}
	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		errs = append(errs, err)
	}
	if c.PKCS11.Enabled() {
		if err := c.PKCS11.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Overrides parses the secret classification overrides. Primitive and
// field names are checked later against the registry.
func (c *Config) Overrides() (ctaudit.Overrides, error) {
	if len(c.Secrets) == 0 {
		return nil, nil
	}
	out := make(ctaudit.Overrides, len(c.Secrets))
	for name, fields := range c.Secrets {
		m := make(map[string]primitive.Sensitivity, len(fields))
		for field, s := range fields {
			sens, err := primitive.ParseSensitivity(strings.ToLower(s))
			if err != nil {
				return nil, fmt.Errorf("secrets.%s.%s: %w", name, field, err)
			}
			m[field] = sens
		}
		out[name] = m
	}
	return out, nil
}
