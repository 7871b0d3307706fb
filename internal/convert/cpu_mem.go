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

// jiffiesPerSecond is the kernel time unit assumed by spec.md's GLOSSARY:
// 100 per second on the target platform.
const jiffiesPerSecond = 100

func cpuTotal(raw RawMetricSet, std []Label) *ConvertedMetric {
	sum, found := sumItems(raw, "kata_guest_cpu_time", "user", "system", "guest", "nice")
	if !found {
		return nil
	}
	return &ConvertedMetric{
		Name: "container_cpu_usage_seconds_total",
		Type: MetricCounter,
		Samples: []Sample{
			{Labels: withExtra(std, Label{Name: "cpu", Value: "total"}), Value: sum / jiffiesPerSecond},
		},
	}
}

func cpuSystem(raw RawMetricSet, std []Label) *ConvertedMetric {
	sum, found := sumItems(raw, "kata_guest_cpu_time", "system")
	if !found {
		return nil
	}
	return &ConvertedMetric{
		Name:    "container_cpu_system_seconds_total",
		Type:    MetricCounter,
		Samples: []Sample{{Labels: std, Value: sum / jiffiesPerSecond}},
	}
}

func cpuUser(raw RawMetricSet, std []Label) *ConvertedMetric {
	sum, found := sumItems(raw, "kata_guest_cpu_time", "user")
	if !found {
		return nil
	}
	return &ConvertedMetric{
		Name:    "container_cpu_user_seconds_total",
		Type:    MetricCounter,
		Samples: []Sample{{Labels: std, Value: sum / jiffiesPerSecond}},
	}
}

func memUsage(raw RawMetricSet, std []Label) *ConvertedMetric {
	total, foundTotal := sumItems(raw, "kata_guest_meminfo", "mem_total")
	free, foundFree := sumItems(raw, "kata_guest_meminfo", "mem_free")
	if !foundTotal || !foundFree {
		return nil
	}
	return &ConvertedMetric{
		Name:    "container_memory_usage_bytes",
		Type:    MetricGauge,
		Samples: []Sample{{Labels: std, Value: total - free}},
	}
}

func memWorkingSet(raw RawMetricSet, std []Label) *ConvertedMetric {
	sum, found := sumItems(raw, "kata_guest_meminfo", "active", "inactive_file")
	if !found {
		return nil
	}
	return &ConvertedMetric{
		Name:    "container_memory_working_set_bytes",
		Type:    MetricGauge,
		Samples: []Sample{{Labels: std, Value: sum}},
	}
}

func memCache(raw RawMetricSet, std []Label) *ConvertedMetric {
	sum, found := sumItems(raw, "kata_guest_meminfo", "cached", "buffers")
	if !found {
		return nil
	}
	return &ConvertedMetric{
		Name:    "container_memory_cache",
		Type:    MetricGauge,
		Samples: []Sample{{Labels: std, Value: sum}},
	}
}

func memRSS(raw RawMetricSet, std []Label) *ConvertedMetric {
	sum, found := sumItems(raw, "kata_guest_meminfo", "anon_pages")
	if !found {
		return nil
	}
	return &ConvertedMetric{
		Name:    "container_memory_rss",
		Type:    MetricGauge,
		Samples: []Sample{{Labels: std, Value: sum}},
	}
}

func memSwap(raw RawMetricSet, std []Label) *ConvertedMetric {
	total, foundTotal := sumItems(raw, "kata_guest_meminfo", "swap_total")
	free, foundFree := sumItems(raw, "kata_guest_meminfo", "swap_free")
	if !foundTotal || !foundFree {
		return nil
	}
	return &ConvertedMetric{
		Name:    "container_memory_swap",
		Type:    MetricGauge,
		Samples: []Sample{{Labels: std, Value: total - free}},
	}
}

func processes(raw RawMetricSet, std []Label) *ConvertedMetric {
	sum, found := sumItems(raw, "kata_guest_tasks", "cur")
	if !found {
		return nil
	}
	return &ConvertedMetric{
		Name:    "container_processes",
		Type:    MetricGauge,
		Samples: []Sample{{Labels: std, Value: sum}},
	}
}

// threadFamilies are the four guest-side thread-count families summed into
// a single container_threads output metric; each is expected to carry one
// bare (unlabelled) sample.
var threadFamilies = []string{
	"kata_shim_threads",
	"kata_hypervisor_threads",
	"kata_agent_threads",
	"kata_virtiofsd_threads",
}

func threads(raw RawMetricSet, std []Label) *ConvertedMetric {
	var sum float64
	found := false
	for _, name := range threadFamilies {
		fam, ok := raw[name]
		if !ok {
			continue
		}
		for _, s := range fam.Samples {
			sum += s.Value
			found = true
		}
	}
	if !found {
		return nil
	}
	return &ConvertedMetric{
		Name:    "container_threads",
		Type:    MetricGauge,
		Samples: []Sample{{Labels: std, Value: sum}},
	}
}
