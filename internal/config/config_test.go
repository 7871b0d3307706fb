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

package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func newContext(t *testing.T, args []string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	app := cli.NewApp()
	app.Flags = Flags()
	for _, f := range app.Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(app, set, nil)
}

func TestDefaultsMatchSpecTable(t *testing.T) {
	c := newContext(t, nil)
	cfg, err := FromContext(c)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8090", cfg.ListenAddress)
	assert.Equal(t, "/run/containerd/containerd.sock", cfg.RuntimeEndpoint)
	assert.Equal(t, 60*time.Second, cfg.MetricsInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestFlagOverridesDefault(t *testing.T) {
	c := newContext(t, []string{"--listen-address", "0.0.0.0:9999"})
	cfg, err := FromContext(c)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.ListenAddress)
}

func TestRejectsNonPositiveInterval(t *testing.T) {
	c := newContext(t, []string{"--metrics-interval", "0s"})
	_, err := FromContext(c)
	assert.Error(t, err)
}
