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
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kata-containers/kata-sandbox-metrics/internal/cache"
	"github.com/kata-containers/kata-sandbox-metrics/internal/registry"
)

// Server is the HTTP serving adapter described in spec.md §6. It holds no
// state of its own beyond references to the Registry and Cache it reads.
type Server struct {
	echo *echo.Echo
	reg  *registry.Registry
	mc   *cache.Cache
}

// sandboxView is the JSON shape GET /sandboxes returns per sandbox.
type sandboxView struct {
	SandboxID string `json:"sandbox_id"`
	PodName   string `json:"pod_name"`
	Namespace string `json:"namespace"`
	UID       string `json:"uid"`
}

// New builds a Server wired to reg and mc. It registers every route but
// does not start listening; call Start for that.
func New(reg *registry.Registry, mc *cache.Cache) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())

	s := &Server{echo: e, reg: reg, mc: mc}

	e.GET("/", s.handleIndex)
	e.GET("/metrics", s.handleMetrics)
	e.GET("/sandboxes", s.handleSandboxes)
	e.GET("/healthz", s.handleHealthz)

	return s
}

// Start begins serving on addr. It blocks until the listener is closed.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops accepting new connections and drains
// in-flight requests, honoring ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) handleSandboxes(c echo.Context) error {
	snap := s.reg.Snapshot()
	views := make([]sandboxView, 0, len(snap))
	for _, sb := range snap {
		views = append(views, sandboxView{
			SandboxID: sb.ID,
			PodName:   sb.PodName,
			Namespace: sb.Namespace,
			UID:       sb.PodUID,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].SandboxID < views[j].SandboxID })
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleMetrics(c echo.Context) error {
	sandboxID := c.QueryParam("sandbox")
	if sandboxID != "" && !s.reg.Has(sandboxID) {
		return c.String(http.StatusNotFound, "unknown sandbox\n")
	}

	instances := s.mc.AggregationView(sandboxID)
	body := serializeExposition(instances)
	return c.Blob(http.StatusOK, "text/plain; version=0.0.4", []byte(body))
}

func (s *Server) handleIndex(c echo.Context) error {
	accept := c.Request().Header.Get("Accept")
	if accept != "" && containsMediaType(accept, "text/html") {
		return c.HTML(http.StatusOK, indexHTML)
	}
	return c.String(http.StatusOK, indexText)
}

const indexText = `kata-sandbox-metrics

GET /metrics     exposition-format output (optional ?sandbox=<id>)
GET /sandboxes   known sandboxes, as JSON
GET /healthz     liveness check
`

const indexHTML = `<!doctype html>
<html><head><title>kata-sandbox-metrics</title></head>
<body>
<h1>kata-sandbox-metrics</h1>
<ul>
<li><a href="/metrics">/metrics</a></li>
<li><a href="/sandboxes">/sandboxes</a></li>
<li><a href="/healthz">/healthz</a></li>
</ul>
</body></html>
`

func containsMediaType(accept, mediaType string) bool {
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if semi := strings.IndexByte(part, ';'); semi >= 0 {
			part = part[:semi]
		}
		if strings.EqualFold(part, mediaType) {
			return true
		}
	}
	return false
}
