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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kadirpekel/mosaico/pkg/model"
	"github.com/kadirpekel/mosaico/pkg/observability"
)

// taskPollInterval is how often a task that is still running after
// message/send is polled.
const taskPollInterval = 100 * time.Millisecond

// SendAgentMessage delivers a one-shot message from sourceAgent to
// targetAgent over A2A message/send and returns the service's reply text.
func (c *Client) SendAgentMessage(ctx context.Context, sourceAgent, targetAgent, message string) (string, error) {
	if sourceAgent == "" || targetAgent == "" {
		return "", fmt.Errorf("%w: source and target agent are required", model.ErrInvalidRequest)
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanAgentSend,
		attribute.String(observability.AttrAgentSource, sourceAgent),
		attribute.String(observability.AttrAgentTarget, targetAgent),
	)
	start := time.Now()

	reply, err := c.sendAgentMessage(ctx, sourceAgent, targetAgent, message)
	observability.EndSpan(span, err)
	observability.GetGlobalMetrics().RecordAgentMessage(ctx, sourceAgent, targetAgent, time.Since(start), err)

	return reply, err
}

func (c *Client) sendAgentMessage(ctx context.Context, sourceAgent, targetAgent, message string) (string, error) {
	cl := c.newCall()
	client, err := c.dial(ctx, cl)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Destroy() }()

	msg := buildAgentMessage(sourceAgent, targetAgent, message)
	slog.Debug("Mosaico agent message",
		"source", sourceAgent,
		"target", targetAgent,
		"context_id", msg.ContextID)

	result, err := client.SendMessage(ctx, &a2a.MessageSendParams{Message: msg})
	if err != nil {
		return "", cl.classify("send agent message", c.apiBase, err)
	}

	switch r := result.(type) {
	case *a2a.Message:
		return ackText(partsText(r.Parts))
	case *a2a.Task:
		task, err := c.awaitTask(ctx, client, cl, r)
		if err != nil {
			return "", err
		}
		return taskAck(task)
	default:
		return "", &model.ProtocolError{Op: "send agent message", Message: fmt.Sprintf("unexpected result %T", result)}
	}
}

// awaitTask polls a task returned by a non-blocking server until it settles.
func (c *Client) awaitTask(ctx context.Context, client *a2aclient.Client, cl *call, task *a2a.Task) (*a2a.Task, error) {
	ticker := time.NewTicker(taskPollInterval)
	defer ticker.Stop()

	for !settled(task.Status.State) {
		select {
		case <-ctx.Done():
			return nil, &model.TransportError{Op: "send agent message", URL: c.apiBase, Err: ctx.Err()}
		case <-ticker.C:
		}

		next, err := client.GetTask(ctx, &a2a.TaskQueryParams{ID: task.ID})
		if err != nil {
			return nil, cl.classify("get task", c.apiBase, err)
		}
		task = next
	}
	return task, nil
}

func settled(state a2a.TaskState) bool {
	return state.Terminal() || state == a2a.TaskStateInputRequired
}

// taskAck prefers the status message over artifacts: it is the agent's
// direct answer to the sender.
func taskAck(task *a2a.Task) (string, error) {
	switch task.Status.State {
	case a2a.TaskStateFailed, a2a.TaskStateRejected, a2a.TaskStateCanceled:
		return "", taskError("send agent message", task.Status)
	}

	if task.Status.Message != nil {
		if text := partsText(task.Status.Message.Parts); strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return ackText(taskText(task))
}

func ackText(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &model.ProtocolError{Op: "send agent message", Message: "agent returned no acknowledgment"}
	}
	return text, nil
}
