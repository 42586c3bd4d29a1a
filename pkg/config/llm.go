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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// LLMType identifies how an LLM is provided.
type LLMType string

const (
	// LLMTypeMosaico talks to a Mosaico agent service over A2A.
	LLMTypeMosaico LLMType = "mosaico"

	// LLMTypePlugin delegates to an out-of-process provider plugin.
	LLMTypePlugin LLMType = "plugin"
)

// Defaults for the mosaico provider.
const (
	DefaultMosaicoModel   = "mosaico-default"
	DefaultMosaicoAPIBase = "http://localhost:12000"
	DefaultTimeout        = 60 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
)

// Environment variables consulted when fields are left empty.
const (
	EnvAPIBase = "MOSAICO_API_BASE"
	EnvAPIKey  = "MOSAICO_API_KEY"
	EnvModel   = "MOSAICO_MODEL"
)

// LLMConfig configures one LLM provider instance.
//
// Example:
//
//	llms:
//	  default:
//	    type: mosaico
//	    model: planner
//	    api_base: ${MOSAICO_API_BASE:-http://localhost:12000}
//	    api_key: ${MOSAICO_API_KEY}
//	    health_timeout: 2s
type LLMConfig struct {
	// Type selects the provider implementation.
	Type LLMType `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"title=Type,description=Provider type,enum=mosaico,enum=plugin,default=mosaico"`

	// Model is the default backend model id.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Default model identifier,default=mosaico-default"`

	// APIBase is the agent service base URL.
	APIBase string `yaml:"api_base,omitempty" json:"api_base,omitempty" jsonschema:"title=API Base,description=Agent service base URL,default=http://localhost:12000"`

	// APIKey is sent as a bearer token. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=Bearer token (use ${ENV_VAR})"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty" jsonschema:"title=HTTP Headers,description=Custom headers for every request"`

	// Timeout bounds connecting and waiting for a response. Streams that
	// have started are not cut off.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Connect and response header timeout (e.g. 60s)"`

	// HealthTimeout bounds the availability probe.
	HealthTimeout time.Duration `yaml:"health_timeout,omitempty" json:"health_timeout,omitempty" jsonschema:"title=Health Timeout,description=Availability probe timeout (e.g. 5s)"`

	// MaxRetries applies to unary requests only. Streams never retry.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,description=Retries for unary requests,minimum=0,default=0"`

	// TLS customizes certificate verification.
	TLS *TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty" jsonschema:"title=TLS,description=TLS settings"`

	// Plugin names an entry under plugins. Required for type plugin.
	Plugin string `yaml:"plugin,omitempty" json:"plugin,omitempty" jsonschema:"title=Plugin,description=Plugin name (type plugin only)"`
}

// TLSConfig configures TLS for outgoing connections.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate checks. Development only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty" jsonschema:"title=Insecure Skip Verify,default=false"`

	// CACertificate is a PEM file with additional trusted roots.
	CACertificate string `yaml:"ca_certificate,omitempty" json:"ca_certificate,omitempty" jsonschema:"title=CA Certificate,description=Path to a PEM CA bundle"`
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = LLMTypeMosaico
	}
	if c.Type != LLMTypeMosaico {
		return
	}

	if c.Model == "" {
		c.Model = envOr(EnvModel, DefaultMosaicoModel)
	}
	if c.APIBase == "" {
		c.APIBase = envOr(EnvAPIBase, DefaultMosaicoAPIBase)
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
	if c.APIKey == "" {
		c.APIKey = os.Getenv(EnvAPIKey)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.HealthTimeout == 0 {
		c.HealthTimeout = DefaultHealthTimeout
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	switch c.Type {
	case LLMTypeMosaico, "":
		if c.APIBase != "" && !strings.HasPrefix(c.APIBase, "http://") && !strings.HasPrefix(c.APIBase, "https://") {
			return fmt.Errorf("api_base must be an http(s) URL, got %q", c.APIBase)
		}
		if c.Plugin != "" {
			return fmt.Errorf("plugin is only valid for type %q", LLMTypePlugin)
		}
	case LLMTypePlugin:
		if c.Plugin == "" {
			return fmt.Errorf("plugin is required for type %q", LLMTypePlugin)
		}
	default:
		return fmt.Errorf("invalid type %q (valid: mosaico, plugin)", c.Type)
	}

	if c.Timeout < 0 || c.HealthTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.TLS != nil && c.TLS.CACertificate != "" {
		if _, err := os.Stat(c.TLS.CACertificate); err != nil {
			return fmt.Errorf("tls.ca_certificate: %w", err)
		}
	}

	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
