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

// Span and metric attribute keys.
const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"
	AttrLLMProvider    = "llm.provider"
	AttrLLMModel       = "llm.model"
	AttrLLMOperation   = "llm.operation"
	AttrLLMMessages    = "llm.messages"
	AttrLLMFragments   = "llm.fragments"
	AttrModelCount     = "llm.model_count"
	AttrAvailable      = "service.available"
	AttrAgentSource    = "agent.source"
	AttrAgentTarget    = "agent.target"
	AttrErrorKind      = "error.kind"
)

// Span names.
const (
	SpanChat      = "llm.chat"
	SpanModels    = "llm.list_models"
	SpanHealth    = "llm.health"
	SpanAgentSend = "agent.send_message"
)

// Operation labels for RecordLLMCall.
const (
	OpChat   = "chat"
	OpModels = "list_models"
	OpHealth = "health"
)

const (
	// InstrumentationName identifies spans produced by this module.
	InstrumentationName = "github.com/kadirpekel/mosaico"

	DefaultServiceName  = "mosaico"
	DefaultNamespace    = "mosaico"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
	DefaultSamplingRate = 1.0
)
