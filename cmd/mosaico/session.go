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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/mosaico/pkg/config"
	"github.com/kadirpekel/mosaico/pkg/llms"
	"github.com/kadirpekel/mosaico/pkg/model"
	"github.com/kadirpekel/mosaico/pkg/observability"
	"github.com/kadirpekel/mosaico/pkg/plugins"
)

const shutdownTimeout = 5 * time.Second

// session holds everything a command needs to talk to the configured LLMs.
type session struct {
	cfg      *config.Config
	llms     *llms.Registry
	obs      *observability.Manager
	cleanups []func()
}

// loadConfig loads the config file, or builds the zero-config default when
// no file is given. Connection flags override the selected mosaico LLM.
func (c *CLI) loadConfig(ctx context.Context) (*config.Config, error) {
	var cfg *config.Config
	if c.Config != "" {
		loaded, loader, err := config.LoadConfigFile(ctx, c.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		_ = loader.Close()
		slog.Debug("Loaded configuration", "path", c.Config)
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	if c.APIBase == "" && c.APIKey == "" && c.Model == "" {
		return cfg, nil
	}

	name, llmCfg, err := cfg.LLM(c.LLM)
	if err != nil {
		return nil, err
	}
	if llmCfg.Type != config.LLMTypeMosaico {
		return nil, fmt.Errorf("llm %q: --api-base, --api-key and --model apply to mosaico LLMs only", name)
	}
	if c.APIBase != "" {
		llmCfg.APIBase = c.APIBase
	}
	if c.APIKey != "" {
		llmCfg.APIKey = c.APIKey
	}
	if c.Model != "" {
		llmCfg.Model = c.Model
	}
	llmCfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openSession loads the config and starts observability. The caller must
// Close the session.
func (c *CLI) openSession(ctx context.Context) (*session, error) {
	cfg, err := c.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, obs: observability.NoopManager()}

	if c.Config != "" {
		cleanup, err := applyConfigLogger(c, cfg.Logger)
		if err != nil {
			return nil, err
		}
		s.addCleanup(cleanup)
	}

	if cfg.Observability.Enabled() {
		obs := observability.NewManager(*cfg.Observability)
		if err := obs.Initialize(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize observability: %w", err)
		}
		s.obs = obs
		if _, err := s.obs.ServeMetrics(); err != nil {
			s.Close()
			return nil, err
		}
	}

	level := "warn"
	if cfg.Logger.Level == "debug" {
		level = "debug"
	}
	s.llms = llms.NewRegistry(cfg, llms.WithFactory(config.LLMTypePlugin,
		llms.PluginFactory(plugins.NewLogger("mosaico-plugin", level))))

	return s, nil
}

func (s *session) addCleanup(fn func()) {
	if fn != nil {
		s.cleanups = append(s.cleanups, fn)
	}
}

// LLM returns the named provider. An empty name selects the default.
func (s *session) LLM(ctx context.Context, name string) (model.LLM, error) {
	return s.llms.Get(ctx, name)
}

// Close releases the LLMs and flushes telemetry.
func (s *session) Close() {
	var errs []error
	if s.llms != nil {
		errs = append(errs, s.llms.Close())
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	errs = append(errs, s.obs.Shutdown(ctx))
	cancel()
	if err := errors.Join(errs...); err != nil {
		slog.Warn("Session shutdown incomplete", "error", err)
	}
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
}
