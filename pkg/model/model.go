// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model defines the provider contract shared by every chat backend.
//
// A provider turns an ordered conversation into a lazy sequence of
// assistant fragments:
//   - StreamChat returns iter.Seq2[*Fragment, error]
//   - each Fragment carries only the new chunk, never the cumulative text
//   - cancelling the context ends the sequence without an error
//   - a transport or protocol failure is yielded once as the final element
package model

import (
	"context"
	"encoding/json"
	"iter"
	"strings"
)

// LLM is the interface every chat provider implements.
type LLM interface {
	// Name returns the default model identifier.
	Name() string

	// Provider returns the provider type (e.g., "mosaico", "plugin").
	Provider() Provider

	// SupportsCompletions reports whether raw-prompt completion is available.
	// Drivers must check it before calling StreamComplete.
	SupportsCompletions() bool

	// StreamComplete streams a raw-prompt completion. Chat-only providers
	// yield ErrUnsupportedOperation before doing any I/O.
	StreamComplete(ctx context.Context, prompt string, opts *CompletionOptions) iter.Seq2[string, error]

	// StreamChat streams the assistant reply to the last message in the
	// conversation. Each call is independent and not restartable.
	StreamChat(ctx context.Context, messages []*ChatMessage, opts *CompletionOptions) iter.Seq2[*Fragment, error]

	// IsServiceAvailable performs a bounded health probe.
	IsServiceAvailable(ctx context.Context) bool

	// ListModels returns the model identifiers served by the backend.
	ListModels(ctx context.Context) ([]string, error)

	// Close releases any resources held by the provider.
	Close() error
}

// AgentMessenger is implemented by providers that can address agents directly.
type AgentMessenger interface {
	// SendAgentMessage delivers a one-shot message from source to target and
	// returns the backend acknowledgment.
	SendAgentMessage(ctx context.Context, sourceAgent, targetAgent, message string) (string, error)
}

// Provider identifies the provider type.
type Provider string

const (
	// ProviderMosaico is the Mosaico agent-to-agent service.
	ProviderMosaico Provider = "mosaico"

	// ProviderPlugin is any provider running in an out-of-process plugin.
	ProviderPlugin Provider = "plugin"

	// ProviderUnknown for unrecognized providers.
	ProviderUnknown Provider = "unknown"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// ContentPartType identifies the kind of a structured content part.
type ContentPartType string

const (
	ContentPartText ContentPartType = "text"
	ContentPartData ContentPartType = "data"
)

// ContentPart is one element of a structured message payload.
type ContentPart struct {
	Type ContentPartType `json:"type"`
	Text string          `json:"text,omitempty"`
	Data map[string]any  `json:"data,omitempty"`
}

// ChatMessage is one turn of a conversation. Content holds plain text;
// Parts holds a structured payload and takes precedence when set.
type ChatMessage struct {
	Role    Role          `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// NewTextMessage creates a plain-text message.
func NewTextMessage(role Role, text string) *ChatMessage {
	return &ChatMessage{Role: role, Content: text}
}

// IsStructured reports whether the message carries a structured payload.
func (m *ChatMessage) IsStructured() bool {
	return m != nil && len(m.Parts) > 0
}

// Text flattens the message to text. Text parts are concatenated as-is;
// a payload with data parts is rendered as JSON.
func (m *ChatMessage) Text() string {
	if m == nil {
		return ""
	}
	if len(m.Parts) == 0 {
		return m.Content
	}

	onlyText := true
	for _, p := range m.Parts {
		if p.Type != ContentPartText {
			onlyText = false
			break
		}
	}
	if onlyText {
		var sb strings.Builder
		for _, p := range m.Parts {
			sb.WriteString(p.Text)
		}
		return sb.String()
	}

	data, err := json.Marshal(m.Parts)
	if err != nil {
		return m.Content
	}
	return string(data)
}

// CompletionOptions configures a single call. The context passed alongside
// it is the cancellation signal.
type CompletionOptions struct {
	// Model selects the backend model. Empty means the provider default.
	Model string

	// Temperature controls randomness (0-2).
	Temperature *float64

	// MaxTokens limits the response length.
	MaxTokens int

	// Stop terminates generation.
	Stop []string

	// Metadata is forwarded to the backend untouched.
	Metadata map[string]string
}

// ModelOrDefault returns the requested model, falling back to def.
func (o *CompletionOptions) ModelOrDefault(def string) string {
	if o == nil || o.Model == "" {
		return def
	}
	return o.Model
}

// Fragment is one incremental piece of an assistant reply.
type Fragment struct {
	Role    Role
	Content string
}

// NewFragment creates an assistant fragment.
func NewFragment(content string) *Fragment {
	return &Fragment{Role: RoleAssistant, Content: content}
}
