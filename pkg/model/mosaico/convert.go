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

package mosaico

import (
	"encoding/json"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"

	"github.com/kadirpekel/mosaico/pkg/model"
)

// Message metadata keys understood by the Mosaico service.
const (
	MetaModel       = "mosaico:model"
	MetaHistory     = "mosaico:history"
	MetaSystem      = "mosaico:system"
	MetaTemperature = "mosaico:temperature"
	MetaMaxTokens   = "mosaico:max_tokens"
	MetaStop        = "mosaico:stop"
	MetaExtra       = "mosaico:metadata"
	MetaSourceAgent = "mosaico:source_agent"
	MetaTargetAgent = "mosaico:target_agent"
)

// buildChatMessage turns a conversation into one outgoing A2A message. The
// last turn becomes the message parts; earlier turns travel as history.
func buildChatMessage(messages []*model.ChatMessage, modelName string, opts *model.CompletionOptions) *a2a.Message {
	last := messages[len(messages)-1]

	msg := a2a.NewMessage(a2a.MessageRoleUser, toA2AParts(last)...)
	msg.ContextID = uuid.NewString()

	meta := map[string]any{MetaModel: modelName}

	var system []string
	history := make([]map[string]any, 0, len(messages)-1)
	for _, m := range messages[:len(messages)-1] {
		if m.Role == model.RoleSystem {
			system = append(system, m.Text())
			continue
		}
		history = append(history, map[string]any{
			"role":    string(m.Role),
			"content": m.Text(),
		})
	}
	if len(history) > 0 {
		meta[MetaHistory] = history
	}
	if len(system) > 0 {
		meta[MetaSystem] = strings.Join(system, "\n\n")
	}

	if opts != nil {
		if opts.Temperature != nil {
			meta[MetaTemperature] = *opts.Temperature
		}
		if opts.MaxTokens > 0 {
			meta[MetaMaxTokens] = opts.MaxTokens
		}
		if len(opts.Stop) > 0 {
			meta[MetaStop] = opts.Stop
		}
		if len(opts.Metadata) > 0 {
			extra := make(map[string]any, len(opts.Metadata))
			for k, v := range opts.Metadata {
				extra[k] = v
			}
			meta[MetaExtra] = extra
		}
	}

	msg.Metadata = meta
	return msg
}

// buildAgentMessage creates a one-shot message addressed from source to target.
func buildAgentMessage(sourceAgent, targetAgent, text string) *a2a.Message {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text})
	msg.ContextID = uuid.NewString()
	msg.Metadata = map[string]any{
		MetaSourceAgent: sourceAgent,
		MetaTargetAgent: targetAgent,
	}
	return msg
}

func toA2AParts(m *model.ChatMessage) []a2a.Part {
	if !m.IsStructured() {
		return []a2a.Part{a2a.TextPart{Text: m.Content}}
	}

	parts := make([]a2a.Part, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case model.ContentPartData:
			parts = append(parts, a2a.DataPart{Data: p.Data})
		default:
			parts = append(parts, a2a.TextPart{Text: p.Text})
		}
	}
	return parts
}

// partsText flattens A2A parts to text. Data parts are rendered as JSON;
// file parts carry no text and are skipped.
func partsText(parts []a2a.Part) string {
	var sb strings.Builder
	for _, part := range parts {
		switch p := part.(type) {
		case a2a.TextPart:
			sb.WriteString(p.Text)
		case a2a.DataPart:
			if data, err := json.Marshal(p.Data); err == nil {
				sb.Write(data)
			}
		}
	}
	return sb.String()
}

// streamState turns A2A stream events into text deltas. It is owned by a
// single StreamChat call.
type streamState struct {
	// emitted tracks what has been yielded per artifact so cumulative
	// (non-append) updates only contribute their new suffix.
	emitted  map[a2a.ArtifactID]string
	streamed bool
}

func newStreamState() *streamState {
	return &streamState{emitted: make(map[a2a.ArtifactID]string)}
}

// apply returns the deltas carried by event and whether the stream is over.
func (s *streamState) apply(event a2a.Event) (deltas []string, done bool, err error) {
	switch e := event.(type) {
	case *a2a.Message:
		// A direct reply ends the exchange.
		return s.emit(partsText(e.Parts)), true, nil

	case *a2a.TaskArtifactUpdateEvent:
		return s.emit(s.artifactDelta(e.Artifact.ID, partsText(e.Artifact.Parts), e.Append)), false, nil

	case *a2a.TaskStatusUpdateEvent:
		return s.status(e.Status, e.Final)

	case *a2a.Task:
		return s.task(e)

	default:
		return nil, false, nil
	}
}

func (s *streamState) emit(text string) []string {
	if text == "" {
		return nil
	}
	s.streamed = true
	return []string{text}
}

func (s *streamState) artifactDelta(id a2a.ArtifactID, text string, appendChunk bool) string {
	prev := s.emitted[id]
	delta := text
	if !appendChunk && prev != "" && strings.HasPrefix(text, prev) {
		delta = text[len(prev):]
	}
	s.emitted[id] = prev + delta
	return delta
}

func (s *streamState) status(status a2a.TaskStatus, final bool) ([]string, bool, error) {
	switch status.State {
	case a2a.TaskStateFailed, a2a.TaskStateRejected:
		return nil, true, taskError("chat", status)
	case a2a.TaskStateCanceled:
		return nil, true, nil
	}

	var text string
	if status.Message != nil {
		text = partsText(status.Message.Parts)
	}

	switch status.State {
	case a2a.TaskStateWorking:
		return s.emit(text), final, nil
	case a2a.TaskStateCompleted, a2a.TaskStateInputRequired:
		// Final status messages repeat the answer on some servers.
		if s.streamed {
			return nil, true, nil
		}
		return s.emit(text), true, nil
	default:
		return nil, final, nil
	}
}

func (s *streamState) task(task *a2a.Task) ([]string, bool, error) {
	state := task.Status.State
	switch state {
	case a2a.TaskStateFailed, a2a.TaskStateRejected:
		return nil, true, taskError("chat", task.Status)
	case a2a.TaskStateCanceled:
		return nil, true, nil
	}

	if !state.Terminal() && state != a2a.TaskStateInputRequired {
		return nil, false, nil
	}
	if s.streamed {
		return nil, true, nil
	}
	return s.emit(taskText(task)), true, nil
}

// taskText prefers artifact text and falls back to the status message.
func taskText(task *a2a.Task) string {
	var sb strings.Builder
	for _, artifact := range task.Artifacts {
		sb.WriteString(partsText(artifact.Parts))
	}
	if sb.Len() > 0 {
		return sb.String()
	}
	if task.Status.Message != nil {
		return partsText(task.Status.Message.Parts)
	}
	return ""
}
