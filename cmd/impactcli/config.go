package main

import (
	"flag"
	"time"
)

// Config represents the command-line parameters of a one-shot run.
type Config struct {
	Scenario   string
	OutDir     string
	Workers    int
	Iterations int
	Seed       uint64
	BatchSize  int
	Progress   time.Duration
	LogLevel   string
	TracksOnly bool
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{OutDir: ".", Progress: time.Second, LogLevel: "warn"}
}

// Bind attaches the configuration to the provided FlagSet.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.StringVar(&c.Scenario, "scenario", c.Scenario, "scenario JSON file (default: built-in data set)")
	fs.StringVar(&c.OutDir, "out", c.OutDir, "output directory")
	fs.IntVar(&c.Workers, "workers", c.Workers, "worker goroutines (0: scenario value, then NumCPU)")
	fs.IntVar(&c.Iterations, "iterations", c.Iterations, "override the scenario iteration count")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "random seed (0: time based)")
	fs.IntVar(&c.BatchSize, "batch", c.BatchSize, "iterations between progress updates per worker")
	fs.DurationVar(&c.Progress, "progress", c.Progress, "progress report interval (0 disables)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&c.TracksOnly, "tracks-only", c.TracksOnly, "write the reference tracks and skip the Monte Carlo run")
}
