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

// Package criclient is a minimal client for the CRI RuntimeService, used by
// the discovery reconciler solely to list pod sandboxes and their metadata.
// Unlike a full CRI client, it never lists or inspects workload containers:
// the metrics pipeline only cares about sandboxes.
package criclient

import (
	"context"
	"fmt"
	"time"

	"github.com/containerd/containerd/pkg/dialer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	runtime "k8s.io/cri-api/pkg/apis/runtime/v1"
)

// PodSandbox is the subset of CRI pod sandbox information the reconciler
// needs: id, pod metadata, and whether the sandbox is ready.
type PodSandbox struct {
	ID        string
	PodName   string
	Namespace string
	PodUID    string
	Ready     bool
}

// Client is a thin CRI RuntimeService client, connected to a single local
// control-plane endpoint (e.g. containerd's CRI plugin, or CRI-O).
type Client struct {
	conn *grpc.ClientConn
	rtcl runtime.RuntimeServiceClient
}

// Option configures a Client at construction time.
type Option func(*options)

type options struct {
	dialTimeout time.Duration
}

// WithDialTimeout sets the timeout for the initial connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// New connects to the CRI runtime service at the given Unix socket address
// (e.g. "/run/containerd/containerd.sock" or "unix:///run/crio/crio.sock").
func New(address string, opts ...Option) (*Client, error) {
	o := options{dialTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	backoffConfig := backoff.DefaultConfig
	backoffConfig.MaxDelay = 3 * time.Second
	gopts := []grpc.DialOption{
		grpc.WithBlock(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.FailOnNonTempDialError(true),
		grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoffConfig}),
		grpc.WithContextDialer(dialer.ContextDialer),
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.dialTimeout)
	defer cancel()
	conn, err := grpc.DialContext(ctx, dialer.DialAddress(address), gopts...)
	if err != nil {
		return nil, fmt.Errorf("dial CRI runtime endpoint %q: %w", address, err)
	}

	return &Client{
		conn: conn,
		rtcl: runtime.NewRuntimeServiceClient(conn),
	}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Address returns the endpoint this client is connected to.
func (c *Client) Address() string {
	return c.conn.Target()
}

// ListPodSandboxes returns all pod sandboxes currently known to the control
// plane, regardless of state; callers filter on Ready themselves, matching
// spec's "treat any non-terminated state as eligible" stance (the CRI API
// only has SANDBOX_READY and SANDBOX_NOTREADY, so Ready == SANDBOX_READY).
func (c *Client) ListPodSandboxes(ctx context.Context) ([]PodSandbox, error) {
	resp, err := c.rtcl.ListPodSandbox(ctx, &runtime.ListPodSandboxRequest{})
	if err != nil {
		return nil, fmt.Errorf("list pod sandboxes: %w", err)
	}

	out := make([]PodSandbox, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Metadata == nil {
			continue
		}
		out = append(out, PodSandbox{
			ID:        item.Id,
			PodName:   item.Metadata.Name,
			Namespace: item.Metadata.Namespace,
			PodUID:    item.Metadata.Uid,
			Ready:     item.State == runtime.PodSandboxState_SANDBOX_READY,
		})
	}
	return out, nil
}
