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
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kadirpekel/mosaico/pkg/model"
	"github.com/kadirpekel/mosaico/pkg/observability"
)

// StreamChat streams the agent's reply to the last message of the conversation.
//
// Earlier turns are sent as message metadata so the agent sees the whole
// conversation. Each yielded fragment holds only new text. Cancelling ctx
// ends the sequence without an error and releases the connection; breaking
// out of the range loop does the same.
func (c *Client) StreamChat(ctx context.Context, messages []*model.ChatMessage, opts *model.CompletionOptions) iter.Seq2[*model.Fragment, error] {
	return func(yield func(*model.Fragment, error) bool) {
		modelName := opts.ModelOrDefault(c.modelName)

		ctx, span := observability.StartSpan(ctx, observability.SpanChat,
			attribute.String(observability.AttrLLMProvider, string(model.ProviderMosaico)),
			attribute.String(observability.AttrLLMModel, modelName),
			attribute.Int(observability.AttrLLMMessages, len(messages)),
		)

		var (
			start     = time.Now()
			fragments int
			callErr   error
		)
		defer func() {
			span.SetAttributes(attribute.Int(observability.AttrLLMFragments, fragments))
			observability.EndSpan(span, callErr)
			observability.GetGlobalMetrics().RecordLLMCall(ctx, string(model.ProviderMosaico), modelName,
				observability.OpChat, time.Since(start), fragments, callErr)
		}()

		fail := func(err error) {
			callErr = err
			yield(nil, err)
		}

		if err := model.ValidateConversation(messages); err != nil {
			fail(err)
			return
		}

		cl := c.newCall()
		client, err := c.dial(ctx, cl)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fail(err)
			return
		}
		defer func() { _ = client.Destroy() }()

		msg := buildChatMessage(messages, modelName, opts)
		slog.Debug("Mosaico chat request",
			"model", modelName,
			"messages", len(messages),
			"context_id", msg.ContextID)

		state := newStreamState()
		for event, err := range client.SendStreamingMessage(ctx, &a2a.MessageSendParams{Message: msg}) {
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				fail(cl.classify("chat", c.apiBase, err))
				return
			}

			deltas, done, err := state.apply(event)
			if err != nil {
				fail(err)
				return
			}
			for _, delta := range deltas {
				if ctx.Err() != nil {
					return
				}
				fragments++
				if !yield(model.NewFragment(delta), nil) {
					return
				}
			}
			if done {
				slog.Debug("Mosaico chat finished", "context_id", msg.ContextID, "fragments", fragments)
				return
			}
		}

		if ctx.Err() != nil {
			return
		}
		fail(&model.ProtocolError{Op: "chat", Message: "stream ended before the task finished"})
	}
}
