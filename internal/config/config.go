// Copyright The Kata Sandbox Metrics Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config declares the daemon's CLI flags and environment variables
// and resolves them into a Config value.
package config

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const (
	defaultListenAddress   = "127.0.0.1:8090"
	defaultRuntimeEndpoint = "/run/containerd/containerd.sock"
	defaultMetricsInterval = 60 * time.Second
	defaultLogLevel        = "info"
	defaultSandboxStateDir = "/run/vc/sbs"
	defaultSandboxRunDir   = "/run/kata-containers/shared/sandboxes"
)

// Config is the fully resolved set of daemon options, per spec.md §6's
// configuration table plus the two filesystem discovery roots the
// reconciler needs (not individually listed in the spec's table, but
// implied by §4.2's "two directories").
type Config struct {
	ListenAddress   string
	RuntimeEndpoint string
	MetricsInterval time.Duration
	LogLevel        string
	SandboxStateDir string
	SandboxRunDir   string
}

// Flags returns the urfave/cli flag set for these options. Each flag also
// recognizes the matching environment variable; per spec.md §6, an
// explicit CLI flag always wins over its environment variable, which is
// urfave/cli's native precedence and requires no extra code here.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "listen-address",
			EnvVars: []string{"KATA_SANDBOX_METRICS_LISTEN_ADDRESS"},
			Value:   defaultListenAddress,
			Usage:   "HTTP bind address for the serving adapter",
		},
		&cli.StringFlag{
			Name:    "runtime-endpoint",
			EnvVars: []string{"KATA_SANDBOX_METRICS_RUNTIME_ENDPOINT"},
			Value:   defaultRuntimeEndpoint,
			Usage:   "Unix socket of the local container-runtime control-plane endpoint",
		},
		&cli.DurationFlag{
			Name:    "metrics-interval",
			EnvVars: []string{"KATA_SANDBOX_METRICS_INTERVAL"},
			Value:   defaultMetricsInterval,
			Usage:   "Scrape tick period",
		},
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"KATA_SANDBOX_METRICS_LOG_LEVEL"},
			Value:   defaultLogLevel,
			Usage:   "Log verbosity: trace, debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:    "sandbox-state-dir",
			EnvVars: []string{"KATA_SANDBOX_METRICS_STATE_DIR"},
			Value:   defaultSandboxStateDir,
			Usage:   "First filesystem discovery root scanned for sandbox directories",
		},
		&cli.StringFlag{
			Name:    "sandbox-run-dir",
			EnvVars: []string{"KATA_SANDBOX_METRICS_RUN_DIR"},
			Value:   defaultSandboxRunDir,
			Usage:   "Second filesystem discovery root scanned for sandbox directories",
		},
	}
}

// FromContext resolves a Config from a populated cli.Context.
func FromContext(c *cli.Context) (Config, error) {
	cfg := Config{
		ListenAddress:   c.String("listen-address"),
		RuntimeEndpoint: c.String("runtime-endpoint"),
		MetricsInterval: c.Duration("metrics-interval"),
		LogLevel:        c.String("log-level"),
		SandboxStateDir: c.String("sandbox-state-dir"),
		SandboxRunDir:   c.String("sandbox-run-dir"),
	}
	if cfg.ListenAddress == "" {
		return Config{}, fmt.Errorf("listen-address must not be empty")
	}
	if cfg.MetricsInterval <= 0 {
		return Config{}, fmt.Errorf("metrics-interval must be positive, got %s", cfg.MetricsInterval)
	}
	return cfg, nil
}
