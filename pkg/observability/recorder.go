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
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kadirpekel/mosaico/pkg/model"
)

var (
	globalMetrics Metrics = NoopMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics records adapter operations.
type Metrics interface {
	RecordLLMCall(ctx context.Context, provider, modelName, operation string, duration time.Duration, fragments int, err error)
	RecordAgentMessage(ctx context.Context, source, target string, duration time.Duration, err error)
}

// PrometheusMetrics records into otel instruments exported to Prometheus.
type PrometheusMetrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	llmRequests  metric.Int64Counter
	llmDuration  metric.Float64Histogram
	llmErrors    metric.Int64Counter
	llmFragments metric.Int64Counter

	agentMessages metric.Int64Counter
	agentDuration metric.Float64Histogram
	agentErrors   metric.Int64Counter
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, provider, modelName, operation string, duration time.Duration, fragments int, err error) {
	if m == nil || m.llmRequests == nil {
		return
	}
	// The caller's context may already be cancelled; recording must not
	// depend on it.
	ctx = context.WithoutCancel(ctx)

	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", modelName),
		attribute.String("operation", operation),
	)

	m.llmRequests.Add(ctx, 1, attrs)
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if fragments > 0 {
		m.llmFragments.Add(ctx, int64(fragments), attrs)
	}
	if err != nil {
		m.llmErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("operation", operation),
			attribute.String("kind", model.ErrorKind(err)),
		))
	}
}

func (m *PrometheusMetrics) RecordAgentMessage(ctx context.Context, source, target string, duration time.Duration, err error) {
	if m == nil || m.agentMessages == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("target", target),
	)

	m.agentMessages.Add(ctx, 1, attrs)
	m.agentDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.agentErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("target", target),
			attribute.String("kind", model.ErrorKind(err)),
		))
	}
}

// Shutdown flushes and stops the meter provider.
func (m *PrometheusMetrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// SetGlobalMetrics installs m as the process-wide recorder. A nil m restores
// NoopMetrics.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if m == nil {
		m = NoopMetrics{}
	}
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide recorder. Never nil.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
