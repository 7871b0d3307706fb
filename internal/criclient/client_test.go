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

package criclient

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	runtime "k8s.io/cri-api/pkg/apis/runtime/v1"
)

// fakeRuntimeService implements just enough of RuntimeServiceServer to drive
// ListPodSandbox responses in tests.
type fakeRuntimeService struct {
	runtime.UnimplementedRuntimeServiceServer
	sandboxes []*runtime.PodSandbox
}

func (f *fakeRuntimeService) ListPodSandbox(context.Context, *runtime.ListPodSandboxRequest) (*runtime.ListPodSandboxResponse, error) {
	return &runtime.ListPodSandboxResponse{Items: f.sandboxes}, nil
}

func startFakeCRI(t *testing.T, fake *fakeRuntimeService) string {
	t.Helper()

	dir := t.TempDir()
	sock := filepath.Join(dir, "cri.sock")

	lis, err := net.Listen("unix", sock)
	require.NoError(t, err)

	srv := grpc.NewServer()
	runtime.RegisterRuntimeServiceServer(srv, fake)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return sock
}

func TestListPodSandboxesMapsFieldsAndReadiness(t *testing.T) {
	sock := startFakeCRI(t, &fakeRuntimeService{
		sandboxes: []*runtime.PodSandbox{
			{
				Id:     "s1",
				State:  runtime.PodSandboxState_SANDBOX_READY,
				Metadata: &runtime.PodSandboxMetadata{
					Name: "p1", Namespace: "ns1", Uid: "u1",
				},
			},
			{
				Id:    "s2",
				State: runtime.PodSandboxState_SANDBOX_NOTREADY,
				Metadata: &runtime.PodSandboxMetadata{
					Name: "p2", Namespace: "ns2", Uid: "u2",
				},
			},
		},
	})

	cl, err := New(sock)
	require.NoError(t, err)
	defer cl.Close()

	got, err := cl.ListPodSandboxes(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "s1", got[0].ID)
	require.True(t, got[0].Ready)
	require.Equal(t, "p1", got[0].PodName)
	require.Equal(t, "ns1", got[0].Namespace)
	require.Equal(t, "u1", got[0].PodUID)

	require.Equal(t, "s2", got[1].ID)
	require.False(t, got[1].Ready, "SANDBOX_NOTREADY must not be reported ready")
}

func TestNewFailsOnUnreachableEndpoint(t *testing.T) {
	dir := t.TempDir()
	_, err := New(filepath.Join(dir, "does-not-exist.sock"), WithDialTimeout(0))
	if err == nil {
		t.Fatal("expected dial error for unreachable socket")
	}
}
