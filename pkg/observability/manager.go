// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the tracer provider and metrics recorder for a process.
type Manager struct {
	config Config

	mu             sync.RWMutex
	tracerProvider trace.TracerProvider
	memory         *MemoryExporter
	metrics        Metrics
	server         *http.Server
}

// NewManager creates a Manager for cfg. Call Initialize before use.
func NewManager(cfg Config) *Manager {
	cfg.SetDefaults()
	return &Manager{
		config:         cfg,
		tracerProvider: noop.NewTracerProvider(),
		metrics:        NoopMetrics{},
	}
}

// Initialize sets up tracing and metrics and installs them globally.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tp, memory, err := InitGlobalTracer(ctx, m.config.Tracing)
	if err != nil {
		return err
	}
	m.tracerProvider = tp
	m.memory = memory

	metrics, err := InitMetrics(m.config.Metrics)
	if err != nil {
		return err
	}
	m.metrics = metrics
	SetGlobalMetrics(metrics)

	if m.config.Metrics.Enabled {
		slog.Debug("Metrics enabled", "namespace", m.config.Metrics.Namespace, "endpoint", m.config.Metrics.Endpoint)
	}
	if m.config.Tracing.Enabled {
		slog.Debug("Tracing enabled", "exporter", m.config.Tracing.Exporter, "sampling_rate", m.config.Tracing.SamplingRate)
	}

	return nil
}

// Metrics returns the active recorder.
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Tracer returns a tracer from the managed provider.
func (m *Manager) Tracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracerProvider.Tracer(name)
}

// MemoryExporter returns the in-memory span store, or nil unless the
// "memory" exporter is configured.
func (m *Manager) MemoryExporter() *MemoryExporter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.memory
}

// MetricsHandler returns the Prometheus scrape handler.
func (m *Manager) MetricsHandler() http.Handler {
	return Handler(m.Metrics())
}

// ServeMetrics starts serving the scrape endpoint on the configured address.
// It is a no-op when metrics are disabled or no address is set. The bound
// address is returned.
func (m *Manager) ServeMetrics() (string, error) {
	cfg := m.config.Metrics
	if !cfg.Enabled || cfg.Address == "" {
		return "", nil
	}

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", cfg.Address, err)
	}

	srv := &http.Server{Handler: m.metricsRouter(), ReadHeaderTimeout: 5 * time.Second}

	m.mu.Lock()
	m.server = srv
	m.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", "error", err)
		}
	}()

	slog.Info("Serving metrics", "address", ln.Addr().String(), "path", cfg.Endpoint)
	return ln.Addr().String(), nil
}

func (m *Manager) metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(m.config.Metrics.Endpoint, m.MetricsHandler().ServeHTTP)
	return r
}

// Shutdown flushes exporters and stops the metrics server.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.server != nil {
		errs = append(errs, m.server.Shutdown(ctx))
		m.server = nil
	}
	if spt, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		errs = append(errs, spt.Shutdown(ctx))
	}
	if pm, ok := m.metrics.(*PrometheusMetrics); ok {
		errs = append(errs, pm.Shutdown(ctx))
	}
	SetGlobalMetrics(nil)

	return errors.Join(errs...)
}
