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

// Package llms creates configured LLM providers by name.
package llms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/kadirpekel/mosaico/pkg/config"
	"github.com/kadirpekel/mosaico/pkg/model"
	"github.com/kadirpekel/mosaico/pkg/model/mosaico"
	"github.com/kadirpekel/mosaico/pkg/plugins"
	"github.com/kadirpekel/mosaico/pkg/registry"
)

// Factory creates a provider from its config section.
type Factory func(ctx context.Context, name string, cfg *config.LLMConfig, root *config.Config) (model.LLM, error)

// DefaultFactories maps each supported type to its factory.
func DefaultFactories() map[config.LLMType]Factory {
	return map[config.LLMType]Factory{
		config.LLMTypeMosaico: newMosaico,
		config.LLMTypePlugin:  PluginFactory(nil),
	}
}

func newMosaico(_ context.Context, _ string, cfg *config.LLMConfig, _ *config.Config) (model.LLM, error) {
	return mosaico.NewFromConfig(cfg)
}

// PluginFactory returns a factory that starts the plugin process named by
// the LLM section. A nil logger uses the plugin package default.
func PluginFactory(logger hclog.Logger) Factory {
	return func(ctx context.Context, _ string, cfg *config.LLMConfig, root *config.Config) (model.LLM, error) {
		pc, ok := root.Plugins[cfg.Plugin]
		if !ok || pc == nil {
			return nil, fmt.Errorf("unknown plugin %q", cfg.Plugin)
		}
		return plugins.Load(ctx, cfg.Plugin, pc, logger)
	}
}

// Registry creates providers on first use and caches them by name.
// It is safe for concurrent use.
type Registry struct {
	cfg       *config.Config
	factories map[config.LLMType]Factory
	items     *registry.Registry[model.LLM]
	group     singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithFactory registers or overrides the factory for a type.
func WithFactory(t config.LLMType, f Factory) Option {
	return func(r *Registry) {
		r.factories[t] = f
	}
}

// NewRegistry creates a Registry over cfg. cfg must have defaults applied.
func NewRegistry(cfg *config.Config, opts ...Option) *Registry {
	r := &Registry{
		cfg:       cfg,
		factories: DefaultFactories(),
		items:     registry.New[model.LLM]("llm"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Names returns the configured LLM names in sorted order.
func (r *Registry) Names() []string {
	return r.cfg.LLMNames()
}

// Get returns the named provider, creating it on first use. An empty name
// selects the default LLM.
func (r *Registry) Get(ctx context.Context, name string) (model.LLM, error) {
	name, llmCfg, err := r.cfg.LLM(name)
	if err != nil {
		return nil, err
	}

	if llm, ok := r.items.Get(name); ok {
		return llm, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		if llm, ok := r.items.Get(name); ok {
			return llm, nil
		}

		llm, err := r.create(ctx, name, llmCfg)
		if err != nil {
			return nil, err
		}
		if err := r.items.Register(name, llm); err != nil {
			_ = llm.Close()
			return nil, err
		}
		slog.Debug("LLM created", "name", name, "type", llmCfg.Type, "model", llm.Name())
		return llm, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(model.LLM), nil
}

func (r *Registry) create(ctx context.Context, name string, cfg *config.LLMConfig) (model.LLM, error) {
	factory, ok := r.factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("llm %q: unsupported type %q", name, cfg.Type)
	}
	llm, err := factory(ctx, name, cfg, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("llm %q: %w", name, err)
	}
	return llm, nil
}

// Close closes every created provider.
func (r *Registry) Close() error {
	var errs []error
	for name, llm := range r.items.Drain() {
		if err := llm.Close(); err != nil {
			errs = append(errs, fmt.Errorf("llm %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// CreateLLMFromConfig creates a standalone provider from one config section.
// Plugin LLMs resolve their plugin through root.
func CreateLLMFromConfig(ctx context.Context, name string, cfg *config.LLMConfig, root *config.Config) (model.LLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm %q: config cannot be nil", name)
	}
	if root == nil {
		root = &config.Config{}
	}
	return NewRegistry(root).create(ctx, name, cfg)
}
