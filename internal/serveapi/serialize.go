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

// Package serveapi is the HTTP serving adapter: it reads from the Metrics
// Cache and the Registry and never triggers upstream scrape or discovery
// I/O on a request path.
package serveapi

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kata-containers/kata-sandbox-metrics/internal/cache"
	"github.com/kata-containers/kata-sandbox-metrics/internal/convert"
)

// serializeExposition renders an AggregationView as Prometheus
// exposition-format text. This is hand-written rather than built on
// prometheus.Registry/Gatherer because that API re-sorts families
// alphabetically and does not guarantee a stable sample order within a
// family across calls; spec.md §8 requires byte-identical repeated output
// and a fixed, auditable sample order (see DESIGN.md).
func serializeExposition(instances []cache.FamilyInstance) string {
	var b strings.Builder

	i := 0
	for i < len(instances) {
		name := instances[i].Metric.Name
		typ := instances[i].Metric.Type

		var samples []convert.Sample
		for i < len(instances) && instances[i].Metric.Name == name {
			samples = append(samples, instances[i].Metric.Samples...)
			i++
		}
		sortSamplesGlobally(samples)

		b.WriteString("# TYPE ")
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(string(typ))
		b.WriteByte('\n')

		for _, s := range samples {
			writeSampleLine(&b, name, s)
		}
	}
	return b.String()
}

func sortSamplesGlobally(samples []convert.Sample) {
	sort.SliceStable(samples, func(a, b int) bool {
		la, lb := samples[a].Labels, samples[b].Labels
		for k := 0; k < len(la) && k < len(lb); k++ {
			if la[k].Value != lb[k].Value {
				return la[k].Value < lb[k].Value
			}
		}
		return len(la) < len(lb)
	})
}

func writeSampleLine(b *strings.Builder, name string, s convert.Sample) {
	b.WriteString(name)
	b.WriteByte('{')
	for i, l := range s.Labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.Name)
		b.WriteString(`="`)
		b.WriteString(escapeLabelValue(l.Value))
		b.WriteByte('"')
	}
	b.WriteString("} ")
	b.WriteString(formatFloat(s.Value))
	b.WriteByte('\n')
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeLabelValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	return v
}
