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

// sectorSize is the fixed sector size disk sample counters are assumed to
// report in, per spec.md §8's unit law "output_bytes = input_sectors ×
// 512".
const sectorSize = 512

// msPerSecond converts the diskstat time fields, which are in
// milliseconds, into seconds.
const msPerSecond = 1000

// diskSamplesByItem groups kata_guest_diskstat samples by "disk" label for
// samples whose "item" label equals item.
func diskSamplesByItem(raw RawMetricSet, item string) map[string]float64 {
	fam, ok := raw["kata_guest_diskstat"]
	if !ok {
		return nil
	}
	out := make(map[string]float64)
	for _, s := range fam.Samples {
		if v, ok := s.LabelValue("item"); !ok || v != item {
			continue
		}
		disk, ok := s.LabelValue("disk")
		if !ok {
			continue
		}
		out[disk] += s.Value
	}
	return out
}

func perDiskMetric(raw RawMetricSet, std []Label, item, outputName string, typ MetricType, scale float64) ConvertedMetric {
	byDisk := diskSamplesByItem(raw, item)
	samples := make([]Sample, 0, len(byDisk))
	for disk, v := range byDisk {
		samples = append(samples, Sample{
			Labels: withExtra(std, Label{Name: "device", Value: disk}),
			Value:  v * scale,
		})
	}
	sortSamples(samples)
	return ConvertedMetric{Name: outputName, Type: typ, Samples: samples}
}

func diskIdentityMetrics(raw RawMetricSet, std []Label) []ConvertedMetric {
	var out []ConvertedMetric
	if m := perDiskMetric(raw, std, "reads", "container_fs_reads_total", MetricCounter, 1); len(m.Samples) > 0 {
		out = append(out, m)
	}
	if m := perDiskMetric(raw, std, "writes", "container_fs_writes_total", MetricCounter, 1); len(m.Samples) > 0 {
		out = append(out, m)
	}
	return out
}

func diskByteMetrics(raw RawMetricSet, std []Label) []ConvertedMetric {
	var out []ConvertedMetric
	if m := perDiskMetric(raw, std, "sectors_read", "container_fs_reads_bytes_total", MetricCounter, sectorSize); len(m.Samples) > 0 {
		out = append(out, m)
	}
	if m := perDiskMetric(raw, std, "sectors_written", "container_fs_writes_bytes_total", MetricCounter, sectorSize); len(m.Samples) > 0 {
		out = append(out, m)
	}
	return out
}

func diskTimeMetrics(raw RawMetricSet, std []Label) []ConvertedMetric {
	rows := []struct {
		item, outputName string
	}{
		{"time_reading", "container_fs_read_seconds_total"},
		{"time_writing", "container_fs_write_seconds_total"},
		{"time_in_progress", "container_fs_io_time_seconds_total"},
		{"weighted_time_in_progress", "container_fs_io_time_weighted_seconds_total"},
	}
	var out []ConvertedMetric
	for _, row := range rows {
		if m := perDiskMetric(raw, std, row.item, row.outputName, MetricCounter, 1.0/msPerSecond); len(m.Samples) > 0 {
			out = append(out, m)
		}
	}
	return out
}

func blkioDeviceUsage(raw RawMetricSet, std []Label) *ConvertedMetric {
	reads := diskSamplesByItem(raw, "sectors_read")
	writes := diskSamplesByItem(raw, "sectors_written")
	if len(reads) == 0 && len(writes) == 0 {
		return nil
	}

	var samples []Sample
	for disk, v := range reads {
		samples = append(samples, Sample{
			Labels: withExtra(std,
				Label{Name: "operation", Value: "Read"},
				Label{Name: "device", Value: disk},
				Label{Name: "major", Value: ""},
				Label{Name: "minor", Value: ""},
			),
			Value: v * sectorSize,
		})
	}
	for disk, v := range writes {
		samples = append(samples, Sample{
			Labels: withExtra(std,
				Label{Name: "operation", Value: "Write"},
				Label{Name: "device", Value: disk},
				Label{Name: "major", Value: ""},
				Label{Name: "minor", Value: ""},
			),
			Value: v * sectorSize,
		})
	}
	sortSamples(samples)
	return &ConvertedMetric{Name: "container_blkio_device_usage_total", Type: MetricCounter, Samples: samples}
}
