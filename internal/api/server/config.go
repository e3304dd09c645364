// Package server provides HTTP server configuration and lifecycle management.
package server

import (
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string

	// RunOnStart starts a suite run as soon as the server is up.
	RunOnStart bool

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:            "127.0.0.1:8080",
		RunOnStart:      true,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}
