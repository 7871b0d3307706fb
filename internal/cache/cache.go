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

// Package cache holds the most recently converted metrics batch for each
// sandbox, and the derived aggregation view the serving adapter reads from.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/kata-containers/kata-sandbox-metrics/internal/convert"
)

// Entry is a MetricsCacheEntry: the outcome of the most recent scrape and
// conversion attempt for one sandbox.
type Entry struct {
	SandboxID        string
	CollectedAt      time.Time
	OK               bool
	Families         []convert.ConvertedMetric
	ScrapeDurationMS float64
	Error            string
}

// Cache is a concurrent map of sandbox id to Entry. Readers may run in
// parallel with each other; writes are serialized but never block on I/O.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Put replaces any existing entry for entry.SandboxID atomically.
func (c *Cache) Put(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.SandboxID] = entry
}

// Delete drops the entry for id, if any. Safe to call for an id with no
// entry.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Get returns a copy of the entry for id, and whether it existed.
func (c *Cache) Get(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// List returns every entry, sorted by sandbox id, matching spec.md §4.5.
func (c *Cache) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SandboxID < out[j].SandboxID })
	return out
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// AggregationView is a deterministic, read-only concatenation of the
// families of every successful (OK) cache entry, ordered by metric name and
// then by sandbox id (spec.md's DATA MODEL §"AggregationView"). A non-empty
// sandboxFilter restricts the view to that sandbox's entry.
func (c *Cache) AggregationView(sandboxFilter string) []FamilyInstance {
	entries := c.List()

	var instances []FamilyInstance
	for _, e := range entries {
		if sandboxFilter != "" && e.SandboxID != sandboxFilter {
			continue
		}
		if !e.OK {
			continue
		}
		for _, fam := range e.Families {
			instances = append(instances, FamilyInstance{SandboxID: e.SandboxID, Metric: fam})
		}
	}

	sort.SliceStable(instances, func(i, j int) bool {
		if instances[i].Metric.Name != instances[j].Metric.Name {
			return instances[i].Metric.Name < instances[j].Metric.Name
		}
		return instances[i].SandboxID < instances[j].SandboxID
	})
	return instances
}

// FamilyInstance pairs one sandbox's converted metric family with the
// sandbox it came from, for aggregation-view ordering purposes.
type FamilyInstance struct {
	SandboxID string
	Metric    convert.ConvertedMetric
}
