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

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/kata-containers/kata-sandbox-metrics/internal/cache"
	"github.com/kata-containers/kata-sandbox-metrics/internal/config"
	"github.com/kata-containers/kata-sandbox-metrics/internal/criclient"
	"github.com/kata-containers/kata-sandbox-metrics/internal/discovery"
	"github.com/kata-containers/kata-sandbox-metrics/internal/obsmetrics"
	"github.com/kata-containers/kata-sandbox-metrics/internal/registry"
	"github.com/kata-containers/kata-sandbox-metrics/internal/scrape"
	"github.com/kata-containers/kata-sandbox-metrics/internal/serveapi"
)

func main() {
	app := &cli.App{
		Name:   "kata-sandbox-metrics",
		Usage:  "per-node telemetry daemon for Kata Container sandboxes",
		Flags:  config.Flags(),
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("kata-sandbox-metrics exited with error")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.FromContext(c)
	if err != nil {
		return err // configuration errors are fatal at startup only (spec.md §7).
	}

	log := newLogger(cfg.LogLevel)
	log.WithFields(logrus.Fields{
		"listen_address":   cfg.ListenAddress,
		"runtime_endpoint": cfg.RuntimeEndpoint,
		"metrics_interval": cfg.MetricsInterval,
	}).Info("starting kata-sandbox-metrics")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registry.New()
	mc := cache.New()

	criCl, err := criclient.New(cfg.RuntimeEndpoint)
	if err != nil {
		log.WithError(err).Warn("could not connect to control-plane endpoint at startup; control-plane enrichment and sandbox removal are disabled for this run")
		criCl = nil
	}
	if criCl != nil {
		defer criCl.Close()
	}

	reconciler := discovery.New(reg, mc, criCl, cfg.SandboxStateDir, cfg.SandboxRunDir, log.WithField("component", "discovery"))

	recorder := obsmetrics.NewRecorder(prometheus.DefaultRegisterer)
	scraper := scrape.New(reg, mc, recorder, cfg.MetricsInterval, log.WithField("component", "scrape"))

	srv := serveapi.New(reg, mc)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		scraper.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddress).Info("serving adapter listening")
		if err := srv.Start(cfg.ListenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			cancel()
			wg.Wait()
			return err // bind failure is an unrecoverable startup error.
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("serving adapter did not shut down cleanly")
	}

	wg.Wait()
	log.Info("kata-sandbox-metrics stopped")
	return nil
}

func newLogger(level string) *logrus.Entry {
	logger := logrus.New()
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger.WithField("component", "main")
}
