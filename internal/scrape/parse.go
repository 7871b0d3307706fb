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
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/kata-containers/kata-sandbox-metrics/internal/convert"
)

// ParseResult is the outcome of parsing one scrape's response body.
type ParseResult struct {
	// Families holds every metric family seen, keyed by name, in no
	// particular map order; callers needing determinism sort by name
	// themselves (the Converter looks families up by name directly).
	Families convert.RawMetricSet
	// SkippedLines counts data lines that could not be parsed. A bad line
	// never aborts the rest of the batch (spec.md §4.3).
	SkippedLines int
}

// Parse reads a Prometheus exposition-format text document and returns its
// metric families. Unlike github.com/prometheus/common/expfmt, which fails
// the whole document on the first malformed line, Parse skips unparseable
// lines individually and keeps going, matching the scrape contract's
// tolerance for partially-broken sandbox output.
func Parse(r io.Reader) (*ParseResult, error) {
	res := &ParseResult{Families: make(convert.RawMetricSet)}

	pendingHelp := make(map[string]string)
	pendingType := make(map[string]convert.MetricType)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			parseComment(line, pendingHelp, pendingType)
			continue
		}
		name, labels, value, ok := parseSample(line)
		if !ok {
			res.SkippedLines++
			continue
		}
		fam, ok := res.Families[name]
		if !ok {
			fam = &convert.RawMetricFamily{
				Name: name,
				Help: pendingHelp[name],
				Type: pendingType[name],
			}
			if fam.Type == "" {
				fam.Type = convert.MetricUntyped
			}
			res.Families[name] = fam
		}
		fam.Samples = append(fam.Samples, convert.RawSample{Labels: labels, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// parseComment handles "# HELP name text" and "# TYPE name type" lines.
// Any other comment (including bare "#" lines) is ignored.
func parseComment(line string, help map[string]string, types map[string]convert.MetricType) {
	fields := strings.SplitN(line, " ", 4)
	if len(fields) < 3 {
		return
	}
	switch fields[1] {
	case "HELP":
		if len(fields) == 4 {
			help[fields[2]] = fields[3]
		} else {
			help[fields[2]] = ""
		}
	case "TYPE":
		if len(fields) >= 4 {
			types[fields[2]] = convert.MetricType(fields[3])
		}
	}
}

// parseSample parses one data line: name{labels} value, or bare "name
// value" with no label set. A trailing timestamp field, if present, is
// accepted but discarded (the cache and converter operate on current
// values only).
func parseSample(line string) (name string, labels []convert.Label, value float64, ok bool) {
	rest := line
	braceIdx := strings.IndexByte(rest, '{')
	var labelBody string
	if braceIdx >= 0 {
		name = strings.TrimSpace(rest[:braceIdx])
		closeIdx := strings.LastIndexByte(rest, '}')
		if closeIdx < braceIdx {
			return "", nil, 0, false
		}
		labelBody = rest[braceIdx+1 : closeIdx]
		rest = strings.TrimSpace(rest[closeIdx+1:])
	} else {
		sp := strings.IndexByte(rest, ' ')
		if sp < 0 {
			return "", nil, 0, false
		}
		name = rest[:sp]
		rest = strings.TrimSpace(rest[sp:])
	}
	if name == "" {
		return "", nil, 0, false
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, 0, false
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return "", nil, 0, false
	}

	if labelBody != "" {
		labels, ok = parseLabels(labelBody)
		if !ok {
			return "", nil, 0, false
		}
	}
	return name, labels, value, true
}

// parseLabels tokenizes a label body "k1=\"v1\", k2=\"v2\"", honoring
// exposition-format escape sequences \\, \" and \n inside values.
func parseLabels(body string) ([]convert.Label, bool) {
	var labels []convert.Label
	i := 0
	n := len(body)
	for i < n {
		for i < n && (body[i] == ' ' || body[i] == ',') {
			i++
		}
		if i >= n {
			break
		}
		start := i
		for i < n && body[i] != '=' {
			i++
		}
		if i >= n {
			return nil, false
		}
		key := strings.TrimSpace(body[start:i])
		i++ // skip '='
		if i >= n || body[i] != '"' {
			return nil, false
		}
		i++ // skip opening quote
		var val strings.Builder
		closed := false
		for i < n {
			c := body[i]
			if c == '\\' && i+1 < n {
				switch body[i+1] {
				case '\\':
					val.WriteByte('\\')
					i += 2
					continue
				case '"':
					val.WriteByte('"')
					i += 2
					continue
				case 'n':
					val.WriteByte('\n')
					i += 2
					continue
				}
			}
			if c == '"' {
				closed = true
				i++
				break
			}
			val.WriteByte(c)
			i++
		}
		if !closed || key == "" {
			return nil, false
		}
		labels = append(labels, convert.Label{Name: key, Value: val.String()})
	}
	return labels, true
}
