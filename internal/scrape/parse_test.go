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

package scrape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kata-containers/kata-sandbox-metrics/internal/convert"
)

func TestParseBasicFamily(t *testing.T) {
	input := `# HELP kata_guest_meminfo Guest memory counters.
# TYPE kata_guest_meminfo gauge
kata_guest_meminfo{item="mem_total"} 1024
kata_guest_meminfo{item="mem_free"} 256
`
	res, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, res.SkippedLines)

	fam, ok := res.Families["kata_guest_meminfo"]
	require.True(t, ok)
	assert.Equal(t, convert.MetricGauge, fam.Type)
	assert.Equal(t, "Guest memory counters.", fam.Help)
	require.Len(t, fam.Samples, 2)

	v, ok := fam.Samples[0].LabelValue("item")
	require.True(t, ok)
	assert.Equal(t, "mem_total", v)
	assert.Equal(t, 1024.0, fam.Samples[0].Value)
}

func TestParseSkipsBadLinesWithoutAbortingBatch(t *testing.T) {
	input := `kata_guest_meminfo{item="mem_total"} 1024
this is not a valid metric line
kata_guest_meminfo{item="mem_free"} 256
kata_guest_meminfo{item="broken"
`
	res, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	fam := res.Families["kata_guest_meminfo"]
	require.NotNil(t, fam)
	assert.Len(t, fam.Samples, 2)
	assert.Equal(t, 2, res.SkippedLines)
}

func TestParseUntypedDefaultWhenNoTypeComment(t *testing.T) {
	res, err := Parse(strings.NewReader("kata_guest_tasks{item=\"cur\"} 4\n"))
	require.NoError(t, err)
	assert.Equal(t, convert.MetricUntyped, res.Families["kata_guest_tasks"].Type)
}

func TestParseLabelEscapeSequences(t *testing.T) {
	input := `kata_guest_netdev_stat{interface="eth\"0\\weird\nname"} 5
`
	res, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	fam := res.Families["kata_guest_netdev_stat"]
	require.NotNil(t, fam)
	v, ok := fam.Samples[0].LabelValue("interface")
	require.True(t, ok)
	assert.Equal(t, "eth\"0\\weird\nname", v)
}

func TestParseBareMetricWithoutLabels(t *testing.T) {
	res, err := Parse(strings.NewReader("kata_shim_threads 3\n"))
	require.NoError(t, err)
	fam := res.Families["kata_shim_threads"]
	require.NotNil(t, fam)
	require.Len(t, fam.Samples, 1)
	assert.Empty(t, fam.Samples[0].Labels)
	assert.Equal(t, 3.0, fam.Samples[0].Value)
}
