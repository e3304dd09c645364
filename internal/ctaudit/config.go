package ctaudit

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects which signals the auditor collects.
type Mode string

const (
	ModeTiming Mode = "timing"
	ModeTrace  Mode = "trace"
	ModeBoth   Mode = "both"
	ModeOff    Mode = "off"
)

// ParseMode parses an audit mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTiming, ModeTrace, ModeBoth, ModeOff:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown audit mode %q (expected timing, trace, both or off)", s)
	}
}

// Timing reports whether timing trials run in this mode.
func (m Mode) Timing() bool { return m == ModeTiming || m == ModeBoth }

// Trace reports whether trace comparison runs in this mode.
func (m Mode) Trace() bool { return m == ModeTrace || m == ModeBoth }

// Default tuning. These are starting points for a heuristic, not guarantees.
const (
	DefaultTrials     = 1000
	DefaultWarmup     = 50
	DefaultThreshold  = 3.0
	DefaultTrim       = 0.05
	DefaultNoiseFloor = 100 * time.Nanosecond
	DefaultPairs      = 3
)

// minCheckpoint is the number of trials per class collected before an
// early decision is allowed.
const minCheckpoint = 200

// Config tunes the auditor.
type Config struct {
	Mode Mode `yaml:"mode" mapstructure:"mode"`
	// Trials is the number of measurements per input class and pair.
	Trials int `yaml:"trials" mapstructure:"trials"`
	// Warmup calls are made before measuring and discarded.
	Warmup int `yaml:"warmup" mapstructure:"warmup"`
	// Threshold is the variance ratio above which a field is flagged.
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	// Trim is the fraction of slowest samples dropped from each class.
	Trim float64 `yaml:"trim" mapstructure:"trim"`
	// NoiseFloor bounds the within-class standard deviation from below so
	// that very fast, very stable operations are not flagged over
	// sub-nanosecond differences.
	NoiseFloor time.Duration `yaml:"noise_floor" mapstructure:"noise_floor"`
	// Pairs is the number of secret-variant pairs compared, 1 to 3.
	Pairs int `yaml:"pairs" mapstructure:"pairs"`
	// Parallel is the number of (backend, field) targets audited at once.
	Parallel int `yaml:"parallel" mapstructure:"parallel"`
	// Seed derives the fixed public inputs and the secret variants.
	Seed uint64 `yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns the default auditor configuration.
func DefaultConfig() Config {
	return Config{
		Mode:       ModeBoth,
		Trials:     DefaultTrials,
		Warmup:     DefaultWarmup,
		Threshold:  DefaultThreshold,
		Trim:       DefaultTrim,
		NoiseFloor: DefaultNoiseFloor,
		Pairs:      DefaultPairs,
		Parallel:   1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if _, err := ParseMode(string(c.Mode)); err != nil {
		errs = append(errs, err)
	}
	if c.Trials <= 0 {
		errs = append(errs, fmt.Errorf("audit.trials must be positive, got %d", c.Trials))
	}
	if c.Warmup < 0 {
		errs = append(errs, fmt.Errorf("audit.warmup must not be negative, got %d", c.Warmup))
	}
	if c.Threshold <= 1 {
		errs = append(errs, fmt.Errorf("audit.threshold must be greater than 1, got %g", c.Threshold))
	}
	if c.Trim < 0 || c.Trim >= 0.5 {
		errs = append(errs, fmt.Errorf("audit.trim must be in [0, 0.5), got %g", c.Trim))
	}
	if c.NoiseFloor < 0 {
		errs = append(errs, fmt.Errorf("audit.noise_floor must not be negative, got %s", c.NoiseFloor))
	}
	if c.Pairs < 1 || c.Pairs > len(variantPairs) {
		errs = append(errs, fmt.Errorf("audit.pairs must be between 1 and %d, got %d", len(variantPairs), c.Pairs))
	}
	if c.Parallel < 1 {
		errs = append(errs, fmt.Errorf("audit.parallel must be positive, got %d", c.Parallel))
	}
	return errors.Join(errs...)
}
