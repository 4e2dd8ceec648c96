// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads process configuration: environment variables
// for secrets and connection strings (with development-safe defaults),
// command-line flags for process-level knobs like bind address and
// environment name.
package config

import (
	"flag"
	"os"
)

// Config holds every value the combined api/worker binary (cmd/api)
// needs.
type Config struct {
	// BindAddress is the gateway's listen address.
	BindAddress string
	// Environment is "development" or "production"; gates gin's mode
	// and whether the development prover is reachable.
	Environment string
	// StorageType selects the KV backend: "memory" or "badger".
	StorageType string
	// StoragePath is the on-disk path for the badger backend.
	StoragePath string
	// ProverRootSecret seeds the HKDF derivation of the production
	// signing key (pkg/zkvm). Must be set outside development.
	ProverRootSecret string
	// AllowDevProver permits the gateway's direct-proving path to use
	// the development prover instead of requiring ProverRootSecret.
	AllowDevProver bool
	// QueueCapacity bounds the in-process proof queue.
	QueueCapacity int
	// ProverPoolSize bounds concurrent zkVM Prove calls.
	ProverPoolSize int
	// LogLevel is passed to internal/logging.New.
	LogLevel string
}

// FromEnv reads Config from environment variables, falling back to
// development-safe defaults.
func FromEnv() Config {
	return Config{
		BindAddress:      envOr("BIND_ADDRESS", "0.0.0.0:8080"),
		Environment:      envOr("ENVIRONMENT", "development"),
		StorageType:      envOr("STORAGE_TYPE", "memory"),
		StoragePath:      envOr("STORAGE_PATH", "./data"),
		ProverRootSecret: os.Getenv("PROVER_ROOT_SECRET"),
		AllowDevProver:   envOr("ENVIRONMENT", "development") != "production",
		QueueCapacity:    256,
		ProverPoolSize:   4,
		LogLevel:         envOr("LOG_LEVEL", "info"),
	}
}

// BindFlags overlays process-level knobs from command-line flags onto
// cfg. Call flag.Parse() after this.
func (cfg *Config) BindFlags() {
	flag.StringVar(&cfg.BindAddress, "addr", cfg.BindAddress, "gateway listen address")
	flag.StringVar(&cfg.Environment, "env", cfg.Environment, "environment (development/production)")
	flag.IntVar(&cfg.ProverPoolSize, "prover-pool-size", cfg.ProverPoolSize, "max concurrent zkVM prove calls")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
