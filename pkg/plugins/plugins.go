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

// Package plugins runs LLM providers out of process with hashicorp/go-plugin.
//
// A plugin binary calls Serve with any model.LLM. The host calls Load, which
// starts the binary and returns a model.LLM backed by net/rpc. Streams are
// pulled one chunk per Next call so the host controls pacing and can stop a
// stream between chunks.
package plugins

import (
	"context"
	"fmt"
	"net/rpc"
	"os"
	"os/exec"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/kadirpekel/mosaico/pkg/config"
	"github.com/kadirpekel/mosaico/pkg/model"
)

// PluginName is the dispense key of the LLM plugin.
const PluginName = "llm"

// Handshake must match between host and plugin binaries.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "MOSAICO_PLUGIN",
	MagicCookieValue: "d5c0b1a4-mosaico-llm",
}

// pluginMap returns the plugin set served or dispensed.
func pluginMap(p *LLMPlugin) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{PluginName: p}
}

// LLMPlugin is the go-plugin binding for model.LLM over net/rpc. Impl is
// only set on the plugin side.
type LLMPlugin struct {
	Impl model.LLM
}

func (p *LLMPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	if p.Impl == nil {
		return nil, fmt.Errorf("plugin has no implementation")
	}
	return newRPCServer(p.Impl), nil
}

func (p *LLMPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	rc, err := newRPCClient(c)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// Serve runs impl as a plugin. It blocks until the host disconnects and
// must be called from the plugin binary's main.
func Serve(impl model.LLM, logger hclog.Logger) {
	if logger == nil {
		logger = NewLogger("mosaico-plugin", "info")
	}
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         pluginMap(&LLMPlugin{Impl: impl}),
		Logger:          logger,
	})
}

// NewLogger builds the hclog logger shared by host and plugin processes.
func NewLogger(name, level string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.LevelFromString(level),
		Output: os.Stderr,
	})
}

// Plugin is a loaded plugin process. It is a model.LLM; Close stops the
// process.
type Plugin struct {
	*RPCClient
	name   string
	client *plugin.Client
}

// PluginName returns the configured plugin name.
func (p *Plugin) PluginName() string {
	return p.name
}

// Close shuts the provider down and kills the plugin process.
func (p *Plugin) Close() error {
	err := p.RPCClient.Close()
	p.client.Kill()
	return err
}

// Load starts the plugin binary described by cfg and dispenses its LLM.
func Load(ctx context.Context, name string, cfg *config.PluginConfig, logger hclog.Logger) (*Plugin, error) {
	if cfg == nil {
		return nil, fmt.Errorf("plugin %q: config cannot be nil", name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewLogger("mosaico-plugin."+name, "warn")
	}

	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Env = pluginEnv(cfg.Env)

	startTimeout := cfg.StartTimeout
	if startTimeout == 0 {
		startTimeout = config.DefaultPluginStartTimeout
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          pluginMap(&LLMPlugin{}),
		Cmd:              cmd,
		Logger:           logger,
		StartTimeout:     startTimeout,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("plugin %q: failed to start: %w", name, err)
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("plugin %q: failed to dispense: %w", name, err)
	}

	rc, ok := raw.(*RPCClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %q: unexpected client type %T", name, raw)
	}

	logger.Debug("plugin loaded", "name", name, "provider", rc.Provider(), "model", rc.Name())
	return &Plugin{RPCClient: rc, name: name, client: client}, nil
}

func pluginEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
