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
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics builds the otel instruments backed by a dedicated Prometheus
// registry. A disabled config yields NoopMetrics.
func InitMetrics(cfg MetricsConfig) (Metrics, error) {
	if !cfg.Enabled {
		return NoopMetrics{}, nil
	}

	registry := prometheus.NewRegistry()
	promExporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)
	meter := meterProvider.Meter(InstrumentationName)

	m := &PrometheusMetrics{
		provider: meterProvider,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	if m.llmRequests, err = meter.Int64Counter(
		"llm_requests",
		metric.WithDescription("Total LLM adapter operations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm requests counter: %w", err)
	}

	if m.llmDuration, err = meter.Float64Histogram(
		"llm_request_duration_seconds",
		metric.WithDescription("LLM adapter operation duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	if m.llmErrors, err = meter.Int64Counter(
		"llm_errors",
		metric.WithDescription("Total failed LLM adapter operations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	if m.llmFragments, err = meter.Int64Counter(
		"llm_fragments",
		metric.WithDescription("Total streamed response fragments"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm fragments counter: %w", err)
	}

	if m.agentMessages, err = meter.Int64Counter(
		"agent_messages",
		metric.WithDescription("Total agent-to-agent messages sent"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent messages counter: %w", err)
	}

	if m.agentDuration, err = meter.Float64Histogram(
		"agent_message_duration_seconds",
		metric.WithDescription("Agent-to-agent message round trip in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent duration histogram: %w", err)
	}

	if m.agentErrors, err = meter.Int64Counter(
		"agent_message_errors",
		metric.WithDescription("Total failed agent-to-agent messages"),
	); err != nil {
		return nil, fmt.Errorf("failed to create agent errors counter: %w", err)
	}

	return m, nil
}

// Handler returns the scrape handler for m, or a 404 handler when metrics
// are disabled.
func Handler(m Metrics) http.Handler {
	if pm, ok := m.(*PrometheusMetrics); ok && pm.handler != nil {
		return pm.handler
	}
	return http.NotFoundHandler()
}
