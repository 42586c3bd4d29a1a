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

// Package mosaico provides the Mosaico agent-to-agent provider.
//
// Mosaico speaks A2A (JSON-RPC over HTTP) for conversation and agent
// messaging, plus two plain REST endpoints:
//   - GET /health for availability probes
//   - GET /v1/models for the model catalogue
//
// Every call resolves the agent card and opens its own A2A client, so no
// connection or conversation state is shared between calls.
package mosaico

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/mosaico/pkg/config"
	"github.com/kadirpekel/mosaico/pkg/httpclient"
	"github.com/kadirpekel/mosaico/pkg/model"
)

const (
	// DefaultModel is used when neither the config nor the call selects one.
	DefaultModel = "mosaico-default"

	// DefaultAPIBase is the local Mosaico service.
	DefaultAPIBase = "http://localhost:12000"

	defaultTimeout       = 60 * time.Second
	defaultHealthTimeout = 5 * time.Second

	agentCardPath = "/.well-known/agent-card.json"
	healthPath    = "/health"
	modelsPath    = "/v1/models"
)

// Config configures the Mosaico client.
type Config struct {
	// Model is the default model (default: mosaico-default)
	Model string

	// APIBase is the service root (default: http://localhost:12000)
	APIBase string

	// APIKey is sent as a bearer token when set
	APIKey string

	// Headers are added to every request
	Headers map[string]string

	// Timeout bounds connecting and waiting for a response. A stream that
	// has started runs until it ends or ctx is cancelled.
	Timeout time.Duration

	// HealthTimeout bounds IsServiceAvailable
	HealthTimeout time.Duration

	// MaxRetries for the model catalogue request. Streams are never retried.
	MaxRetries int

	// TLS configures custom CAs or verification skipping
	TLS *httpclient.TLSConfig
}

// Client is the Mosaico provider. It implements model.LLM and
// model.AgentMessenger and is safe for concurrent use.
type Client struct {
	httpClient *httpclient.Client
	a2aHTTP    *http.Client
	probe      *http.Client

	apiBase       string
	modelName     string
	healthTimeout time.Duration
}

// New creates a new Mosaico client.
func New(cfg Config) (*Client, error) {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	apiBase = strings.TrimRight(apiBase, "/")
	if !strings.HasPrefix(apiBase, "http://") && !strings.HasPrefix(apiBase, "https://") {
		return nil, fmt.Errorf("%w: api base %q must be an http(s) URL", model.ErrInvalidRequest, cfg.APIBase)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	healthTimeout := cfg.HealthTimeout
	if healthTimeout == 0 {
		healthTimeout = defaultHealthTimeout
	}

	hc, err := httpclient.NewWithTLS(cfg.TLS,
		httpclient.WithTimeout(timeout),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithHeaders(cfg.Headers),
		httpclient.WithBearerToken(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure transport: %w", err)
	}

	return &Client{
		httpClient:    hc,
		a2aHTTP:       hc.StreamingClient(timeout),
		probe:         hc.StandardClient(healthTimeout),
		apiBase:       apiBase,
		modelName:     modelName,
		healthTimeout: healthTimeout,
	}, nil
}

// NewFromConfig creates a client from an LLM config section.
func NewFromConfig(cfg *config.LLMConfig) (*Client, error) {
	if cfg == nil {
		return New(Config{})
	}

	var tlsCfg *httpclient.TLSConfig
	if cfg.TLS != nil {
		tlsCfg = &httpclient.TLSConfig{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
			CACertificate:      cfg.TLS.CACertificate,
		}
	}

	return New(Config{
		Model:         cfg.Model,
		APIBase:       cfg.APIBase,
		APIKey:        cfg.APIKey,
		Headers:       cfg.Headers,
		Timeout:       cfg.Timeout,
		HealthTimeout: cfg.HealthTimeout,
		MaxRetries:    cfg.MaxRetries,
		TLS:           tlsCfg,
	})
}

// Name returns the default model identifier.
func (c *Client) Name() string {
	return c.modelName
}

// Provider returns the provider type.
func (c *Client) Provider() model.Provider {
	return model.ProviderMosaico
}

// APIBase returns the normalized service root.
func (c *Client) APIBase() string {
	return c.apiBase
}

// SupportsCompletions is always false: Mosaico only speaks conversations.
func (c *Client) SupportsCompletions() bool {
	return false
}

// StreamComplete fails with model.ErrUnsupportedOperation before any I/O.
func (c *Client) StreamComplete(ctx context.Context, prompt string, opts *model.CompletionOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		slog.Debug("Raw completion requested on chat-only provider", "provider", model.ProviderMosaico)
		yield("", model.Unsupported(model.ProviderMosaico, "completion"))
	}
}

// Close releases resources. Calls own their connections, so there is nothing to do.
func (c *Client) Close() error {
	return nil
}

var (
	_ model.LLM            = (*Client)(nil)
	_ model.AgentMessenger = (*Client)(nil)
)
