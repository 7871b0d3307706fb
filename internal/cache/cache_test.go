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

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kata-containers/kata-sandbox-metrics/internal/convert"
)

func TestPutReplacesAtomically(t *testing.T) {
	c := New()
	c.Put(Entry{SandboxID: "s1", OK: true, CollectedAt: time.Now()})
	c.Put(Entry{SandboxID: "s1", OK: false, Error: "timeout"})

	e, ok := c.Get("s1")
	require.True(t, ok)
	assert.False(t, e.OK)
	assert.Equal(t, "timeout", e.Error)
}

func TestDeleteRemovesEntry(t *testing.T) {
	c := New()
	c.Put(Entry{SandboxID: "s1", OK: true})
	c.Delete("s1")
	_, ok := c.Get("s1")
	assert.False(t, ok)
}

func TestListIsSortedByID(t *testing.T) {
	c := New()
	c.Put(Entry{SandboxID: "s2"})
	c.Put(Entry{SandboxID: "s1"})
	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "s1", list[0].SandboxID)
	assert.Equal(t, "s2", list[1].SandboxID)
}

func TestAggregationViewOrdersByMetricNameThenSandbox(t *testing.T) {
	c := New()
	c.Put(Entry{SandboxID: "s2", OK: true, Families: []convert.ConvertedMetric{
		{Name: "container_cpu_usage_seconds_total"},
	}})
	c.Put(Entry{SandboxID: "s1", OK: true, Families: []convert.ConvertedMetric{
		{Name: "container_cpu_usage_seconds_total"},
		{Name: "container_memory_usage_bytes"},
	}})

	view := c.AggregationView("")
	require.Len(t, view, 3)
	assert.Equal(t, "container_cpu_usage_seconds_total", view[0].Metric.Name)
	assert.Equal(t, "s1", view[0].SandboxID)
	assert.Equal(t, "container_cpu_usage_seconds_total", view[1].Metric.Name)
	assert.Equal(t, "s2", view[1].SandboxID)
	assert.Equal(t, "container_memory_usage_bytes", view[2].Metric.Name)
}

func TestAggregationViewFiltersBySandboxAndSkipsFailedEntries(t *testing.T) {
	c := New()
	c.Put(Entry{SandboxID: "s1", OK: true, Families: []convert.ConvertedMetric{{Name: "m1"}}})
	c.Put(Entry{SandboxID: "s2", OK: false, Families: []convert.ConvertedMetric{{Name: "m1"}}})

	assert.Len(t, c.AggregationView("s1"), 1)
	assert.Empty(t, c.AggregationView("s2"))
	assert.Len(t, c.AggregationView(""), 1)
}
