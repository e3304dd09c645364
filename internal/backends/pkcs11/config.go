// Package pkcs11 exposes the digest mechanism of a PKCS#11 token as a
// hash backend, so the token's SHA-256 can be checked against the
// software implementations.
package pkcs11

import (
	"errors"
	"fmt"
	"os"
)

// Config locates the token.
type Config struct {
	// Lib is the path to the PKCS#11 library (.so/.dylib/.dll)
	Lib string `yaml:"lib" mapstructure:"lib"`

	// Token identifies the token by label
	Token string `yaml:"token" mapstructure:"token"`

	// TokenSerial identifies the token by serial number
	TokenSerial string `yaml:"token_serial" mapstructure:"token_serial"`

	// Slot identifies the token by slot ID
	Slot *uint `yaml:"slot" mapstructure:"slot"`

	// PinEnv names the environment variable holding the user PIN.
	// Digesting needs no login, so it may be empty.
	PinEnv string `yaml:"pin_env" mapstructure:"pin_env"`
}

// ErrNotConfigured is returned by Open when no library is set.
var ErrNotConfigured = errors.New("pkcs11: no library configured")

// Enabled reports whether a library has been configured.
func (c Config) Enabled() bool { return c.Lib != "" }

// Validate checks that the configuration can identify a token.
func (c Config) Validate() error {
	if c.Lib == "" {
		return ErrNotConfigured
	}
	if c.Token == "" && c.TokenSerial == "" && c.Slot == nil {
		return fmt.Errorf("at least one of pkcs11.token, pkcs11.token_serial, or pkcs11.slot is required")
	}
	return nil
}

// PIN reads the PIN from the configured environment variable.
func (c Config) PIN() (string, error) {
	if c.PinEnv == "" {
		return "", nil
	}
	pin := os.Getenv(c.PinEnv)
	if pin == "" {
		return "", fmt.Errorf("environment variable %s is not set or empty", c.PinEnv)
	}
	return pin, nil
}
