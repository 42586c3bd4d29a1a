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

package model

import (
	"context"
	"fmt"
	"strings"
)

// Aggregator concatenates streamed fragments into a single assistant message.
//
// Usage:
//
//	agg := NewAggregator()
//	for frag, err := range llm.StreamChat(ctx, messages, opts) {
//	    if err != nil {
//	        return err
//	    }
//	    agg.Add(frag)
//	}
//	msg := agg.Message()
type Aggregator struct {
	sb        strings.Builder
	fragments int
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add appends a fragment. Nil fragments are ignored.
func (a *Aggregator) Add(f *Fragment) {
	if f == nil {
		return
	}
	a.sb.WriteString(f.Content)
	a.fragments++
}

// Fragments returns how many fragments were added.
func (a *Aggregator) Fragments() int {
	return a.fragments
}

// Message returns the assistant message built so far.
func (a *Aggregator) Message() *ChatMessage {
	return NewTextMessage(RoleAssistant, a.sb.String())
}

// CollectChat drives StreamChat to completion and returns the assembled
// assistant message. Cancellation is not an error: whatever was received
// before the context ended is returned.
func CollectChat(ctx context.Context, llm LLM, messages []*ChatMessage, opts *CompletionOptions) (*ChatMessage, error) {
	agg := NewAggregator()
	for frag, err := range llm.StreamChat(ctx, messages, opts) {
		if err != nil {
			return agg.Message(), err
		}
		agg.Add(frag)
	}
	return agg.Message(), nil
}

// Complete drives a raw-prompt completion. The capability flag is checked
// first so chat-only providers are never invoked.
func Complete(ctx context.Context, llm LLM, prompt string, opts *CompletionOptions) (string, error) {
	if !llm.SupportsCompletions() {
		return "", Unsupported(llm.Provider(), "completion")
	}

	var sb strings.Builder
	for chunk, err := range llm.StreamComplete(ctx, prompt, opts) {
		if err != nil {
			return sb.String(), fmt.Errorf("completion failed: %w", err)
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}

// ValidateConversation checks that a conversation can be sent to a provider.
func ValidateConversation(messages []*ChatMessage) error {
	if len(messages) == 0 {
		return fmt.Errorf("%w: conversation must contain at least one message", ErrInvalidRequest)
	}
	for i, m := range messages {
		if m == nil {
			return fmt.Errorf("%w: message %d is nil", ErrInvalidRequest, i)
		}
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has invalid role %q", ErrInvalidRequest, i, m.Role)
		}
	}
	return nil
}
