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

// Command mosaico-plugin serves a Mosaico provider as a go-plugin process.
// Hosts start it through a plugins section:
//
//	plugins:
//	  remote:
//	    path: ./bin/mosaico-plugin
//	    args: ["--api-base", "http://agents.internal:12000"]
//
// A whole config document can be passed inline through
// MOSAICO_PLUGIN_CONFIG instead of a file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/mosaico/pkg/config"
	"github.com/kadirpekel/mosaico/pkg/config/provider"
	"github.com/kadirpekel/mosaico/pkg/model/mosaico"
	"github.com/kadirpekel/mosaico/pkg/plugins"
)

// CLI defines the plugin's flags. The host passes them through the plugin
// config's args and env.
type CLI struct {
	Config     string `short:"c" help:"Config file holding the LLM section to serve." type:"path" xor:"source"`
	ConfigData string `name:"config-data" help:"Inline YAML or JSON config document." env:"MOSAICO_PLUGIN_CONFIG" xor:"source"`
	LLM        string `name:"llm" help:"LLM section to serve (default: the 'default' entry)."`
	APIBase    string `name:"api-base" help:"Agent service base URL." env:"MOSAICO_API_BASE"`
	APIKey     string `name:"api-key" help:"Bearer token for the agent service." env:"MOSAICO_API_KEY"`
	Model      string `short:"m" help:"Model identifier." env:"MOSAICO_MODEL"`
	LogLevel   string `help:"Plugin log level." default:"info" env:"MOSAICO_PLUGIN_LOG_LEVEL"`
}

func main() {
	cli := CLI{}
	kong.Parse(&cli, kong.Name("mosaico-plugin"))

	logger := plugins.NewLogger("mosaico-plugin", cli.LogLevel)

	llmCfg, err := cli.llmConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	client, err := mosaico.NewFromConfig(llmCfg)
	if err != nil {
		logger.Error("failed to create provider", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	logger.Info("serving", "model", client.Name(), "api_base", client.APIBase())
	plugins.Serve(client, logger)
}

func (c *CLI) llmConfig() (*config.LLMConfig, error) {
	llmCfg := &config.LLMConfig{Type: config.LLMTypeMosaico}
	if source, ok := c.source(); ok {
		cfg, loader, err := config.LoadConfig(context.Background(), source)
		if err != nil {
			return nil, err
		}
		_ = loader.Close()

		name, section, err := cfg.LLM(c.LLM)
		if err != nil {
			return nil, err
		}
		if section.Type != config.LLMTypeMosaico {
			return nil, fmt.Errorf("llm %q has type %q, want %q", name, section.Type, config.LLMTypeMosaico)
		}
		llmCfg = section
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
	return llmCfg, llmCfg.Validate()
}

func (c *CLI) source() (provider.ProviderConfig, bool) {
	switch {
	case c.Config != "":
		return provider.ProviderConfig{Type: provider.TypeFile, Path: c.Config}, true
	case c.ConfigData != "":
		return provider.ProviderConfig{Type: provider.TypeMemory, Data: []byte(c.ConfigData)}, true
	default:
		return provider.ProviderConfig{}, false
	}
}
