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

package serveapi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kata-containers/kata-sandbox-metrics/internal/cache"
	"github.com/kata-containers/kata-sandbox-metrics/internal/convert"
)

func TestSerializeExpositionEmitsTypeLineOnce(t *testing.T) {
	instances := []cache.FamilyInstance{
		{SandboxID: "s1", Metric: convert.ConvertedMetric{
			Name: "container_processes", Type: convert.MetricGauge,
			Samples: []convert.Sample{{Labels: []convert.Label{{Name: "id", Value: "s1"}}, Value: 2}},
		}},
		{SandboxID: "s2", Metric: convert.ConvertedMetric{
			Name: "container_processes", Type: convert.MetricGauge,
			Samples: []convert.Sample{{Labels: []convert.Label{{Name: "id", Value: "s2"}}, Value: 4}},
		}},
	}
	out := serializeExposition(instances)
	assert.Equal(t, 1, strings.Count(out, "# TYPE container_processes gauge"))
	assert.Contains(t, out, `container_processes{id="s1"} 2`)
	assert.Contains(t, out, `container_processes{id="s2"} 4`)
}

func TestSerializeExpositionEscapesLabelValues(t *testing.T) {
	instances := []cache.FamilyInstance{
		{SandboxID: "s1", Metric: convert.ConvertedMetric{
			Name: "container_cpu_usage_seconds_total", Type: convert.MetricCounter,
			Samples: []convert.Sample{{
				Labels: []convert.Label{{Name: "pod", Value: `weird"name\with` + "\nnewline"}},
				Value:  1,
			}},
		}},
	}
	out := serializeExposition(instances)
	assert.Contains(t, out, `pod="weird\"name\\with\nnewline"`)
}

func TestSerializeExpositionIsDeterministic(t *testing.T) {
	instances := []cache.FamilyInstance{
		{SandboxID: "s1", Metric: convert.ConvertedMetric{
			Name: "container_network_receive_bytes_total", Type: convert.MetricCounter,
			Samples: []convert.Sample{
				{Labels: []convert.Label{{Name: "interface", Value: "veth1"}}, Value: 1},
				{Labels: []convert.Label{{Name: "interface", Value: "eth0"}}, Value: 2},
			},
		}},
	}
	first := serializeExposition(instances)
	second := serializeExposition(instances)
	assert.Equal(t, first, second)

	ethIdx := strings.Index(first, `interface="eth0"`)
	vethIdx := strings.Index(first, `interface="veth1"`)
	assert.Less(t, ethIdx, vethIdx, "samples must be ordered by sorted label-value tuple")
}
