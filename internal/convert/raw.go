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

// Package convert translates a sandbox's raw guest-VM metric families into
// the container-oriented output schema, applying unit conversions, label
// enrichment and interface/device filtering per the schema table.
package convert

// MetricType is the Prometheus exposition-format metric type tag.
type MetricType string

const (
	MetricCounter   MetricType = "counter"
	MetricGauge     MetricType = "gauge"
	MetricHistogram MetricType = "histogram"
	MetricSummary   MetricType = "summary"
	MetricUntyped   MetricType = "untyped"
)

// Label is one name/value pair of a sample's label set, kept in the order it
// was encountered on the wire.
type Label struct {
	Name  string
	Value string
}

// RawSample is a single data line of a RawMetricFamily, as scraped from a
// sandbox's guest-VM metrics socket.
type RawSample struct {
	Labels []Label
	Value  float64
}

// LabelValue returns the value of the first label named name, and whether it
// was present.
func (s RawSample) LabelValue(name string) (string, bool) {
	for _, l := range s.Labels {
		if l.Name == name {
			return l.Value, true
		}
	}
	return "", false
}

// RawMetricFamily is a parsed guest-VM exposition-format metric family. Its
// lifetime is a single scrape cycle: the Scraper produces it and the
// Converter consumes it; it is never retained afterwards.
type RawMetricFamily struct {
	Name    string
	Help    string
	Type    MetricType
	Samples []RawSample
}

// RawMetricSet is the full set of families scraped from one sandbox in one
// cycle, keyed by family name.
type RawMetricSet map[string]*RawMetricFamily
