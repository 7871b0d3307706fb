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

package scrape

import (
	"bytes"
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kata-containers/kata-sandbox-metrics/internal/cache"
	"github.com/kata-containers/kata-sandbox-metrics/internal/convert"
	"github.com/kata-containers/kata-sandbox-metrics/internal/registry"
)

// MinConcurrency is the floor spec.md §4.3 places on fan-out parallelism.
const MinConcurrency = 8

// Recorder receives the Scraper's process-wide observability counters.
// internal/obsmetrics.Recorder satisfies this.
type Recorder interface {
	ObserveAttempt(ok bool, durationMS float64)
	ObserveParseErrors(n int)
	SetActiveSandboxes(n int)
}

// Scraper performs one bounded, parallel fan-out over the Registry's
// current sandbox set every tick, committing converted results to the
// Metrics Cache.
type Scraper struct {
	reg     *registry.Registry
	cache   *cache.Cache
	fetcher *Fetcher
	rec     Recorder
	log     *logrus.Entry

	interval    time.Duration
	concurrency int
}

// Option configures a Scraper at construction time.
type Option func(*Scraper)

// WithConcurrency overrides the fan-out concurrency limit; values below
// MinConcurrency are raised to it.
func WithConcurrency(n int) Option {
	return func(s *Scraper) {
		if n < MinConcurrency {
			n = MinConcurrency
		}
		s.concurrency = n
	}
}

// WithFetchTimeout overrides the per-sandbox fetch deadline.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Scraper) { s.fetcher = NewFetcher(d) }
}

// New returns a Scraper that scrapes every interval.
func New(reg *registry.Registry, mc *cache.Cache, rec Recorder, interval time.Duration, log *logrus.Entry, opts ...Option) *Scraper {
	s := &Scraper{
		reg:         reg,
		cache:       mc,
		fetcher:     NewFetcher(DefaultFetchTimeout),
		rec:         rec,
		log:         log,
		interval:    interval,
		concurrency: MinConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks every s.interval until ctx is cancelled. A shutdown signal lets
// the in-flight tick finish but starts no new one, per spec.md §5.
func (s *Scraper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick scrapes every sandbox in the current Registry snapshot, bounded to
// s.concurrency concurrent fetches, and commits each result to the cache
// independently as it completes.
func (s *Scraper) tick(ctx context.Context) {
	sandboxes := s.reg.Snapshot()
	s.rec.SetActiveSandboxes(len(sandboxes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, sb := range sandboxes {
		sb := sb
		g.Go(func() error {
			s.scrapeOne(gctx, sb)
			return nil
		})
	}
	_ = g.Wait() // scrapeOne never returns an error; failures are committed, not propagated.
}

// scrapeOne fetches, parses, converts and commits one sandbox's metrics.
// Any failure at any stage results in a failed cache entry rather than a
// propagated error: the tick must never abort because one sandbox is
// unreachable.
func (s *Scraper) scrapeOne(ctx context.Context, sb registry.Sandbox) {
	start := time.Now()
	entry := cache.Entry{SandboxID: sb.ID, CollectedAt: start}

	if !sb.HasSocket() {
		entry.OK = false
		entry.Error = "sandbox has no resolved metrics socket yet"
		entry.ScrapeDurationMS = float64(time.Since(start).Microseconds()) / 1000
		s.cache.Put(entry)
		s.rec.ObserveAttempt(false, entry.ScrapeDurationMS)
		return
	}

	body, err := s.fetcher.Fetch(ctx, sb.SocketPath)
	durationMS := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		entry.OK = false
		entry.Error = err.Error()
		entry.ScrapeDurationMS = durationMS
		s.cache.Put(entry)
		s.rec.ObserveAttempt(false, durationMS)
		s.log.WithError(err).WithField("sandbox_id", sb.ID).Warn("scrape failed")
		return
	}

	parsed, err := Parse(bytes.NewReader(body))
	if err != nil {
		entry.OK = false
		entry.Error = err.Error()
		entry.ScrapeDurationMS = durationMS
		s.cache.Put(entry)
		s.rec.ObserveAttempt(false, durationMS)
		return
	}
	s.rec.ObserveParseErrors(parsed.SkippedLines)

	families := convert.Convert(parsed.Families, convert.Identity{
		SandboxID: sb.ID,
		PodName:   sb.PodName,
		Namespace: sb.Namespace,
	})

	entry.OK = true
	entry.Families = families
	entry.ScrapeDurationMS = durationMS
	s.cache.Put(entry)
	s.rec.ObserveAttempt(true, durationMS)
}
