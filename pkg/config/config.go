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

// Package config loads and validates mosaico configuration.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kadirpekel/mosaico/pkg/observability"
)

// DefaultLLMName is the name of the LLM used when none is requested.
const DefaultLLMName = "default"

// Config is the root configuration.
//
// Example:
//
//	logger:
//	  level: info
//	llms:
//	  default:
//	    type: mosaico
//	    api_base: http://localhost:12000
//	observability:
//	  metrics:
//	    enabled: true
//	    address: ":9464"
type Config struct {
	// Logger configures logging.
	Logger *LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty" jsonschema:"title=Logger"`

	// LLMs are the configured provider instances, keyed by name.
	LLMs map[string]*LLMConfig `yaml:"llms,omitempty" json:"llms,omitempty" jsonschema:"title=LLMs,description=Provider instances keyed by name"`

	// Plugins are provider plugin binaries, keyed by name.
	Plugins map[string]*PluginConfig `yaml:"plugins,omitempty" json:"plugins,omitempty" jsonschema:"title=Plugins,description=Provider plugin binaries keyed by name"`

	// Observability configures tracing and metrics.
	Observability *observability.Config `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability"`
}

// DefaultConfig returns a config with a single mosaico LLM, used when no
// config file is given. Defaults are applied.
func DefaultConfig() *Config {
	cfg := &Config{
		LLMs: map[string]*LLMConfig{
			DefaultLLMName: {Type: LLMTypeMosaico},
		},
	}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	if c.Logger == nil {
		c.Logger = &LoggerConfig{}
	}
	c.Logger.SetDefaults()

	if c.LLMs == nil {
		c.LLMs = make(map[string]*LLMConfig)
	}
	for name, llm := range c.LLMs {
		if llm == nil {
			llm = &LLMConfig{}
			c.LLMs[name] = llm
		}
		llm.SetDefaults()
	}

	if c.Plugins == nil {
		c.Plugins = make(map[string]*PluginConfig)
	}
	for name, p := range c.Plugins {
		if p == nil {
			p = &PluginConfig{}
			c.Plugins[name] = p
		}
		p.SetDefaults()
	}

	if c.Observability == nil {
		c.Observability = &observability.Config{}
	}
	c.Observability.SetDefaults()
}

// Validate checks every section and cross references between them.
func (c *Config) Validate() error {
	var errs []string

	if c.Logger != nil {
		if err := c.Logger.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("logger: %v", err))
		}
	}

	for _, name := range sortedKeys(c.LLMs) {
		llm := c.LLMs[name]
		if llm == nil {
			continue
		}
		if err := llm.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("llms.%s: %v", name, err))
			continue
		}
		if llm.Type == LLMTypePlugin {
			if _, ok := c.Plugins[llm.Plugin]; !ok {
				errs = append(errs, fmt.Sprintf("llms.%s: unknown plugin %q", name, llm.Plugin))
			}
		}
	}

	for _, name := range sortedKeys(c.Plugins) {
		if p := c.Plugins[name]; p != nil {
			if err := p.Validate(); err != nil {
				errs = append(errs, fmt.Sprintf("plugins.%s: %v", name, err))
			}
		}
	}

	if c.Observability != nil {
		if err := c.Observability.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("observability: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// LLM returns the named LLM config. An empty name selects "default", or
// the only LLM when exactly one is configured.
func (c *Config) LLM(name string) (string, *LLMConfig, error) {
	if name == "" {
		if _, ok := c.LLMs[DefaultLLMName]; ok || len(c.LLMs) != 1 {
			name = DefaultLLMName
		} else {
			name = sortedKeys(c.LLMs)[0]
		}
	}

	llm, ok := c.LLMs[name]
	if !ok || llm == nil {
		return "", nil, fmt.Errorf("llm %q not configured (available: %v)", name, sortedKeys(c.LLMs))
	}
	return name, llm, nil
}

// LLMNames returns the configured LLM names in sorted order.
func (c *Config) LLMNames() []string {
	return sortedKeys(c.LLMs)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
