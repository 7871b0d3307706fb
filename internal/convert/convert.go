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

package convert

import "sort"

// Sample is a single output data point: a label set plus its value.
type Sample struct {
	Labels []Label
	Value  float64
}

// LabelValue returns the value of the first label named name.
func (s Sample) LabelValue(name string) (string, bool) {
	for _, l := range s.Labels {
		if l.Name == name {
			return l.Value, true
		}
	}
	return "", false
}

// ConvertedMetric is one output metric family produced by Convert: a fixed
// name and type together with its ordered samples.
type ConvertedMetric struct {
	Name    string
	Type    MetricType
	Samples []Sample
}

// Identity is a SandboxIdentity: the join key and pod metadata a sandbox
// carries into every output sample's label set.
type Identity struct {
	SandboxID string
	PodName   string
	Namespace string
}

// standardLabels builds the fixed label set every output sample carries,
// per spec.md §4.4, in alphabetical order. The serializer writes labels in
// the order they are stored, so metric-specific labels added by withExtra
// come out ahead of these.
func standardLabels(id Identity) []Label {
	return []Label{
		{Name: "container", Value: ""},
		{Name: "id", Value: id.SandboxID},
		{Name: "image", Value: ""},
		{Name: "name", Value: id.PodName},
		{Name: "namespace", Value: id.Namespace},
		{Name: "pod", Value: id.PodName},
	}
}

// Convert translates one sandbox's raw guest-VM metric families into the
// container-oriented output schema. raw may be nil or empty, in which case
// every output metric is simply omitted. The returned slice preserves the
// fixed row order of the schema table in spec.md §4.4.
func Convert(raw RawMetricSet, id Identity) []ConvertedMetric {
	std := standardLabels(id)
	var out []ConvertedMetric

	appendIfPresent := func(m *ConvertedMetric) {
		if m != nil {
			out = append(out, *m)
		}
	}

	appendIfPresent(cpuTotal(raw, std))
	appendIfPresent(cpuSystem(raw, std))
	appendIfPresent(cpuUser(raw, std))

	appendIfPresent(memUsage(raw, std))
	appendIfPresent(memWorkingSet(raw, std))
	appendIfPresent(memCache(raw, std))
	appendIfPresent(memRSS(raw, std))
	appendIfPresent(memSwap(raw, std))

	out = append(out, networkMetrics(raw, std)...)

	out = append(out, diskIdentityMetrics(raw, std)...)
	out = append(out, diskByteMetrics(raw, std)...)
	out = append(out, diskTimeMetrics(raw, std)...)
	appendIfPresent(blkioDeviceUsage(raw, std))

	appendIfPresent(processes(raw, std))
	appendIfPresent(threads(raw, std))

	return out
}

// sumItems sums the values of every sample in family whose "item" label
// matches one of items. found is false iff no sample matched any item,
// signalling the caller should omit the output sample entirely.
func sumItems(raw RawMetricSet, familyName string, items ...string) (sum float64, found bool) {
	fam, ok := raw[familyName]
	if !ok {
		return 0, false
	}
	want := make(map[string]bool, len(items))
	for _, it := range items {
		want[it] = true
	}
	for _, s := range fam.Samples {
		item, ok := s.LabelValue("item")
		if !ok || !want[item] {
			continue
		}
		sum += s.Value
		found = true
	}
	return sum, found
}

// sortSamples orders samples by the sorted tuple of their label values,
// matching spec.md §4.4's determinism requirement.
func sortSamples(samples []Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		a, b := samples[i].Labels, samples[j].Labels
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k].Value != b[k].Value {
				return a[k].Value < b[k].Value
			}
		}
		return len(a) < len(b)
	})
}

func withExtra(std []Label, extra ...Label) []Label {
	labels := make([]Label, 0, len(extra)+len(std))
	labels = append(labels, extra...)
	labels = append(labels, std...)
	return labels
}
