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

// Package registry holds the authoritative sandbox_id -> metadata mapping.
package registry

import (
	"fmt"
	"time"
)

// Sandbox is a deliberately limited view of a Kata Containers sandbox,
// dealing with only the bits of data needed to discover it on disk, resolve
// its metrics socket, and enrich it with pod metadata from the container
// runtime's control plane.
//
// A Sandbox's ID never changes for the life of the record. CRI fields
// (PodName, Namespace, PodUID) are either all set or all unset -- they are
// assigned together by Enrich, never piecemeal.
type Sandbox struct {
	ID           string    // sandbox ID, unique on this node, never changes.
	PodName      string    // pod name, empty until enriched.
	Namespace    string    // pod namespace, empty until enriched.
	PodUID       string    // pod UID, empty until enriched.
	SocketPath   string    // path to the sandbox's metrics socket, empty until resolved.
	DiscoveredAt time.Time // when the sandbox was first observed on disk.
	EnrichedAt   time.Time // when CRI fields were set, zero if not yet enriched.
}

// Enriched reports whether the CRI fields have been filled in.
func (s Sandbox) Enriched() bool {
	return !s.EnrichedAt.IsZero()
}

// HasSocket reports whether a metrics socket path has been resolved for this
// sandbox.
func (s Sandbox) HasSocket() bool {
	return s.SocketPath != ""
}

// String renders a short textual representation, useful for log lines.
func (s Sandbox) String() string {
	if s.Enriched() {
		return fmt.Sprintf("sandbox %s (pod %s/%s)", s.ID, s.Namespace, s.PodName)
	}
	return fmt.Sprintf("sandbox %s (unenriched)", s.ID)
}

// CRIFields bundles the three pod metadata fields that are always assigned
// together by the discovery reconciler's enrichment step.
type CRIFields struct {
	PodName   string
	Namespace string
	PodUID    string
}
