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

import "strings"

// interfaceAllowed implements spec.md §4.4's interface filter: retain eth0
// exactly, and anything starting with veth, tap or tun; reject lo and
// docker0 exactly, and anything starting with br-, vxlan or flannel.
// Unmatched names default to reject.
func interfaceAllowed(name string) bool {
	switch {
	case name == "eth0":
		return true
	case strings.HasPrefix(name, "veth"):
		return true
	case strings.HasPrefix(name, "tap"):
		return true
	case strings.HasPrefix(name, "tun"):
		return true
	case name == "lo":
		return false
	case name == "docker0":
		return false
	case strings.HasPrefix(name, "br-"):
		return false
	case strings.HasPrefix(name, "vxlan"):
		return false
	case strings.HasPrefix(name, "flannel"):
		return false
	default:
		return false
	}
}

// netdevItemToOutput maps a kata_guest_netdev_stat sample's "item" label to
// the output metric it feeds. This vocabulary is not pinned down by the
// schema table beyond the output metric names; the mapping below follows
// the common receive/transmit counter naming used by node_exporter-style
// network collectors (see DESIGN.md for the Open Question this resolves).
var netdevItemToOutput = map[string]string{
	"receive_bytes":    "container_network_receive_bytes_total",
	"transmit_bytes":   "container_network_transmit_bytes_total",
	"receive_packets":  "container_network_receive_packets_total",
	"transmit_packets": "container_network_transmit_packets_total",
	"receive_errors":   "container_network_receive_errors_total",
	"transmit_errors":  "container_network_transmit_errors_total",
	"receive_drop":     "container_network_receive_packets_dropped_total",
	"transmit_drop":    "container_network_transmit_packets_dropped_total",
}

// netdevOutputOrder fixes the row order container_network_* metrics are
// emitted in, matching spec.md §4.4's "fixed order" determinism rule.
var netdevOutputOrder = []string{
	"container_network_receive_bytes_total",
	"container_network_receive_packets_total",
	"container_network_receive_errors_total",
	"container_network_receive_packets_dropped_total",
	"container_network_transmit_bytes_total",
	"container_network_transmit_packets_total",
	"container_network_transmit_errors_total",
	"container_network_transmit_packets_dropped_total",
}

func networkMetrics(raw RawMetricSet, std []Label) []ConvertedMetric {
	fam, ok := raw["kata_guest_netdev_stat"]
	if !ok {
		return nil
	}

	byOutput := make(map[string][]Sample, len(netdevOutputOrder))
	for _, s := range fam.Samples {
		iface, ok := s.LabelValue("interface")
		if !ok || !interfaceAllowed(iface) {
			continue
		}
		item, ok := s.LabelValue("item")
		if !ok {
			continue
		}
		outputName, ok := netdevItemToOutput[item]
		if !ok {
			continue
		}
		byOutput[outputName] = append(byOutput[outputName], Sample{
			Labels: withExtra(std, Label{Name: "interface", Value: iface}),
			Value:  s.Value,
		})
	}

	var out []ConvertedMetric
	for _, name := range netdevOutputOrder {
		samples := byOutput[name]
		if len(samples) == 0 {
			continue
		}
		sortSamples(samples)
		out = append(out, ConvertedMetric{Name: name, Type: MetricCounter, Samples: samples})
	}
	return out
}
