// Package config provides configuration helpers for go-gazewarp commands.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Defaults used when the environment does not override them.
const (
	DefaultPort     = "5000"
	DefaultDataDir  = "var"
	DefaultDBName   = "gazewarp.db"
	DefaultLogLevel = "info"
	DefaultWorkers  = 1
	DefaultMaxGap   = 50
)

// Env holds the process-wide settings read from GAZEWARP_* variables.
type Env struct {
	Port     string
	DataDir  string
	DBPath   string
	LogLevel string
	Workers  int
	MaxGap   int
}

// Load reads the environment, falling back to defaults.
func Load() Env {
	dataDir := String("GAZEWARP_DATA_DIR", DefaultDataDir)
	return Env{
		Port:     String("GAZEWARP_PORT", DefaultPort),
		DataDir:  dataDir,
		DBPath:   String("GAZEWARP_DB", filepath.Join(dataDir, DefaultDBName)),
		LogLevel: String("GAZEWARP_LOG_LEVEL", DefaultLogLevel),
		Workers:  Int("GAZEWARP_WORKERS", DefaultWorkers),
		MaxGap:   Int("GAZEWARP_MAX_GAP", DefaultMaxGap),
	}
}

// SessionsDir is where per-session inputs and outputs live.
func (e Env) SessionsDir() string {
	return filepath.Join(e.DataDir, "sessions")
}

// OutputDir is the default root for warped gaze output.
func (e Env) OutputDir() string {
	return filepath.Join(e.DataDir, "outputs")
}

// String returns the value of key or def if unset.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the integer value of key or def if unset or malformed.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
