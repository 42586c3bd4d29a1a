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

package mosaico

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kadirpekel/mosaico/pkg/model"
	"github.com/kadirpekel/mosaico/pkg/observability"
)

// IsServiceAvailable probes GET /health. It never retries and never blocks
// longer than the configured health timeout.
func (c *Client) IsServiceAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, observability.SpanHealth,
		attribute.String(observability.AttrLLMProvider, string(model.ProviderMosaico)))
	start := time.Now()

	available, err := c.probeHealth(ctx)
	span.SetAttributes(attribute.Bool(observability.AttrAvailable, available))
	observability.EndSpan(span, err)
	observability.GetGlobalMetrics().RecordLLMCall(ctx, string(model.ProviderMosaico), c.modelName,
		observability.OpHealth, time.Since(start), 0, err)

	if err != nil {
		slog.Debug("Mosaico health probe failed", "api_base", c.apiBase, "error", err)
	}
	return available
}

func (c *Client) probeHealth(ctx context.Context) (bool, error) {
	url := c.apiBase + healthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.probe.Do(req)
	if err != nil {
		return false, &model.TransportError{Op: "health", URL: url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, &model.ProtocolError{Op: "health", StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return true, nil
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels fetches the model catalogue from GET /v1/models. Order is
// preserved; duplicates and blank ids are dropped. An unreachable service
// is a *model.TransportError, never an empty list.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanModels,
		attribute.String(observability.AttrLLMProvider, string(model.ProviderMosaico)))
	start := time.Now()

	models, err := c.fetchModels(ctx)
	span.SetAttributes(attribute.Int(observability.AttrModelCount, len(models)))
	observability.EndSpan(span, err)
	observability.GetGlobalMetrics().RecordLLMCall(ctx, string(model.ProviderMosaico), c.modelName,
		observability.OpModels, time.Since(start), 0, err)

	return models, err
}

func (c *Client) fetchModels(ctx context.Context) ([]string, error) {
	url := c.apiBase + modelsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if resp == nil {
		return nil, &model.TransportError{Op: "list models", URL: url, Err: err}
	}
	defer resp.Body.Close()
	if err != nil {
		return nil, statusError("list models", resp)
	}

	var body modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &model.ProtocolError{Op: "list models", StatusCode: resp.StatusCode, Message: "malformed model list", Err: err}
	}

	seen := make(map[string]bool, len(body.Data))
	models := make([]string, 0, len(body.Data))
	for _, m := range body.Data {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		models = append(models, m.ID)
	}

	if len(models) == 0 {
		return nil, &model.ProtocolError{Op: "list models", StatusCode: resp.StatusCode, Message: "service returned no models"}
	}
	return models, nil
}
