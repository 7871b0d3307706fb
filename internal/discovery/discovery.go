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

// Package discovery reconciles the sandbox Registry against two asynchronous
// truth sources every tick: a filesystem scan for sandbox directories, and a
// CRI control-plane query for pod metadata. The filesystem decides which
// sandboxes are added; the control plane supplies enrichment, and a sandbox
// it still lists is not removed even after its directory is gone.
package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/kata-containers/kata-sandbox-metrics/internal/criclient"
	"github.com/kata-containers/kata-sandbox-metrics/internal/registry"
)

var (
	errNoCRIClient     = errors.New("no CRI client configured")
	errBackoffCooldown = errors.New("control-plane query backing off after recent failure")
)

// TickInterval is the fixed discovery reconcile cadence; spec.md §4.2 states
// this is not configurable.
const TickInterval = 5 * time.Second

// socketFileName is the well-known relative path each sandbox publishes its
// metrics socket at, inside its per-sandbox directory.
const socketFileName = "metrics.sock"

// CacheDropper is the subset of the metrics cache the reconciler needs: the
// ability to drop a sandbox's cached entry the moment it is deleted from the
// Registry, so stale entries never outlive their sandbox for more than one
// tick (spec.md §5, ordering guarantee (b)).
type CacheDropper interface {
	Delete(id string)
}

// Reconciler keeps a Registry in sync with the union of two sandbox
// directories on disk and the CRI control plane's pod sandbox list.
type Reconciler struct {
	reg   *registry.Registry
	cache CacheDropper
	cri   *criclient.Client
	log   *logrus.Entry

	stateDir string // first filesystem discovery root, e.g. /run/vc/sbs
	runDir   string // second filesystem discovery root, e.g. /run/kata-containers/shared/sandboxes

	criBackoff     backoff.BackOff
	nextCRIAttempt time.Time
}

// New returns a Reconciler. cri may be nil, in which case control-plane
// enrichment is skipped on every tick (treated the same as a query failure).
func New(reg *registry.Registry, cache CacheDropper, cri *criclient.Client, stateDir, runDir string, log *logrus.Entry) *Reconciler {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = TickInterval
	eb.MaxInterval = TickInterval
	eb.RandomizationFactor = 0 // keep every wait within TickInterval.
	eb.MaxElapsedTime = 0 // never stop retrying; the reconciler never terminates on control-plane failure.
	return &Reconciler{
		reg:        reg,
		cache:      cache,
		cri:        cri,
		log:        log,
		stateDir:   stateDir,
		runDir:     runDir,
		criBackoff: eb,
	}
}

// Run executes one reconcile tick every TickInterval until ctx is cancelled.
// One tick always completes fully before the next begins; if a tick overruns
// the interval, the next tick starts immediately with no catch-up.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick performs one full reconcile pass: steps 1-6 of spec.md §4.2.
func (r *Reconciler) tick(ctx context.Context) {
	known := r.reg.Snapshot() // step 1: K

	found := r.scanFilesystem() // step 2: F

	now := time.Now()
	for id, socketPath := range found {
		if r.reg.UpsertIfAbsent(id, socketPath, now) {
			r.log.WithField("sandbox_id", id).Debug("discovered sandbox on disk")
			continue
		}
		// Already known, but retry lazy socket resolution (spec.md §4.2's
		// "socket path probing is lazy" clause).
		if socketPath != "" {
			r.reg.ResolveSocket(id, socketPath)
		}
	}

	criFields, err := r.queryCRI(ctx)
	if err != nil {
		r.log.WithError(err).Warn("control-plane query failed, skipping enrichment this tick")
	} else {
		for id, fields := range criFields {
			if _, stillKnown := found[id]; !stillKnown && !containsID(known, id) {
				// spec.md §4.2: control-plane-only ids are not added until the
				// filesystem observes them too.
				continue
			}
			if r.reg.Enrich(id, fields, now) {
				r.log.WithField("sandbox_id", id).Debug("enriched sandbox from control plane")
			}
		}
	}

	// step 6: delete sandboxes absent from both F and (a successful) C.
	for _, sb := range known {
		if _, inFS := found[sb.ID]; inFS {
			continue
		}
		if err == nil {
			if _, inCRI := criFields[sb.ID]; inCRI {
				continue
			}
		} else {
			// control-plane query failed this tick: do not degrade existing
			// sandboxes just because we couldn't confirm them.
			continue
		}
		if _, ok := r.reg.Delete(sb.ID); ok {
			r.cache.Delete(sb.ID)
			r.log.WithField("sandbox_id", sb.ID).Info("sandbox no longer present, removed")
		}
	}
}

// scanFilesystem scans the two discovery roots for immediate child
// directories named after sandbox ids, resolving a candidate socket path for
// each. Either root may be absent, which is treated as empty, not an error.
// The filesystem-scan error of one root never affects the other.
func (r *Reconciler) scanFilesystem() map[string]string {
	found := make(map[string]string)

	for _, root := range []string{r.stateDir, r.runDir} {
		if root == "" {
			continue
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			if !os.IsNotExist(err) {
				r.log.WithError(err).WithField("dir", root).Warn("filesystem discovery scan failed")
			}
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			id := entry.Name()
			if existing, already := found[id]; already && existing != "" {
				continue // an earlier directory already yielded an existing socket; it wins.
			}
			candidate := filepath.Join(root, id, socketFileName)
			if _, err := os.Stat(candidate); err == nil {
				found[id] = candidate
			} else if _, already := found[id]; !already {
				found[id] = "" // still create/keep the record; retry probing next tick.
			}
		}
	}
	return found
}

// queryCRI lists pod sandboxes from the control plane and returns a map of
// sandbox id to CRI fields, limited to ready sandboxes. A query failure (or a
// query skipped because of an active backoff cooldown) returns a non-nil
// error and the caller must not act on the (empty) map. There are no
// intra-tick retries: one query attempt per tick at most, and only once the
// exponential backoff (capped at TickInterval) has elapsed.
func (r *Reconciler) queryCRI(ctx context.Context) (map[string]registry.CRIFields, error) {
	if r.cri == nil {
		return nil, errNoCRIClient
	}
	if now := time.Now(); now.Before(r.nextCRIAttempt) {
		return nil, errBackoffCooldown
	}

	qctx, cancel := context.WithTimeout(ctx, TickInterval)
	defer cancel()

	sandboxes, err := r.cri.ListPodSandboxes(qctx)
	if err != nil {
		r.nextCRIAttempt = time.Now().Add(r.criBackoff.NextBackOff())
		return nil, err
	}
	r.criBackoff.Reset()
	r.nextCRIAttempt = time.Time{}

	out := make(map[string]registry.CRIFields, len(sandboxes))
	for _, sb := range sandboxes {
		if !sb.Ready {
			continue
		}
		out[sb.ID] = registry.CRIFields{
			PodName:   sb.PodName,
			Namespace: sb.Namespace,
			PodUID:    sb.PodUID,
		}
	}
	return out, nil
}

func containsID(sandboxes []registry.Sandbox, id string) bool {
	for _, sb := range sandboxes {
		if sb.ID == id {
			return true
		}
	}
	return false
}
