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
	"time"
)

// DefaultPluginStartTimeout bounds the plugin handshake.
const DefaultPluginStartTimeout = 10 * time.Second

// PluginConfig describes an out-of-process provider plugin binary.
//
// Example:
//
//	plugins:
//	  remote:
//	    path: ./bin/mosaico-plugin
//	    env:
//	      MOSAICO_API_BASE: http://agents:12000
type PluginConfig struct {
	// Path to the plugin executable.
	Path string `yaml:"path" json:"path" jsonschema:"title=Path,description=Plugin executable path"`

	// Args are passed to the executable.
	Args []string `yaml:"args,omitempty" json:"args,omitempty" jsonschema:"title=Arguments"`

	// Env adds variables to the plugin process environment. Variables
	// already set in the host environment take precedence.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty" jsonschema:"title=Environment"`

	// StartTimeout bounds the handshake with the plugin process.
	StartTimeout time.Duration `yaml:"start_timeout,omitempty" json:"start_timeout,omitempty" jsonschema:"title=Start Timeout,description=Handshake timeout (e.g. 10s)"`
}

// SetDefaults applies default values.
func (c *PluginConfig) SetDefaults() {
	if c.StartTimeout == 0 {
		c.StartTimeout = DefaultPluginStartTimeout
	}
}

// Validate checks the plugin configuration.
func (c *PluginConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.StartTimeout < 0 {
		return fmt.Errorf("start_timeout must not be negative")
	}
	return nil
}
