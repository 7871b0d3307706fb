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

package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kata-containers/kata-sandbox-metrics/internal/registry"
)

type fakeCache struct {
	deleted []string
}

func (f *fakeCache) Delete(id string) { f.deleted = append(f.deleted, id) }

func newTestReconciler(t *testing.T, stateDir, runDir string) (*Reconciler, *registry.Registry, *fakeCache) {
	t.Helper()
	reg := registry.New()
	cache := &fakeCache{}
	log := logrus.NewEntry(logrus.New())
	r := New(reg, cache, nil, stateDir, runDir, log)
	return r, reg, cache
}

func mkSandboxDir(t *testing.T, root, id string, withSocket bool) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if withSocket {
		f, err := os.Create(filepath.Join(dir, socketFileName))
		require.NoError(t, err)
		f.Close()
	}
}

func TestBareDiscoveryAddsSandboxWithSocket(t *testing.T) {
	stateDir := t.TempDir()
	mkSandboxDir(t, stateDir, "s1", true)

	r, reg, _ := newTestReconciler(t, stateDir, "")
	r.tick(context.Background())

	sb, ok := reg.Get("s1")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(stateDir, "s1", socketFileName), sb.SocketPath)
	assert.False(t, sb.Enriched())
}

func TestMissingDirectoriesAreTreatedAsEmpty(t *testing.T) {
	r, reg, _ := newTestReconciler(t, "/no/such/dir-a", "/no/such/dir-b")
	r.tick(context.Background())
	assert.Equal(t, 0, reg.Len())
}

func TestSocketResolutionIsLazy(t *testing.T) {
	stateDir := t.TempDir()
	mkSandboxDir(t, stateDir, "s1", false)

	r, reg, _ := newTestReconciler(t, stateDir, "")
	r.tick(context.Background())

	sb, _ := reg.Get("s1")
	assert.False(t, sb.HasSocket())

	// the socket appears between ticks.
	f, err := os.Create(filepath.Join(stateDir, "s1", socketFileName))
	require.NoError(t, err)
	f.Close()

	r.tick(context.Background())
	sb, _ = reg.Get("s1")
	assert.True(t, sb.HasSocket())
}

func TestDeletionRequiresAbsenceFromFilesystemForOneFullTick(t *testing.T) {
	stateDir := t.TempDir()
	mkSandboxDir(t, stateDir, "s1", true)

	r, reg, cache := newTestReconciler(t, stateDir, "")
	r.tick(context.Background())
	require.True(t, reg.Has("s1"))

	require.NoError(t, os.RemoveAll(filepath.Join(stateDir, "s1")))
	r.tick(context.Background())

	assert.False(t, reg.Has("s1"))
	assert.Contains(t, cache.deleted, "s1")
}

func TestCRIQueryFailureSkipsEnrichmentAndDeletion(t *testing.T) {
	stateDir := t.TempDir()
	mkSandboxDir(t, stateDir, "s1", true)

	r, reg, _ := newTestReconciler(t, stateDir, "")
	// no CRI client configured -> queryCRI always errors.
	r.tick(context.Background())
	require.True(t, reg.Has("s1"))

	require.NoError(t, os.RemoveAll(filepath.Join(stateDir, "s1")))
	r.tick(context.Background())
	// filesystem no longer lists s1, but the (failing) control-plane query
	// means step 6 must be skipped this tick: s1 survives.
	assert.True(t, reg.Has("s1"), "deletion must be skipped when the control-plane query fails")
}
