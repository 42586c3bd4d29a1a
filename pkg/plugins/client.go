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

package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/rpc"

	"github.com/kadirpekel/mosaico/pkg/model"
)

// RPCClient is the host side of a plugin. It implements model.LLM and
// model.AgentMessenger.
type RPCClient struct {
	client *rpc.Client
	info   InfoReply
}

func newRPCClient(c *rpc.Client) (*RPCClient, error) {
	rc := &RPCClient{client: c}
	if err := c.Call("Plugin.Info", "", &rc.info); err != nil {
		return nil, fmt.Errorf("plugin info: %w", err)
	}
	return rc, nil
}

// call runs an RPC and returns early when ctx is done. The RPC itself keeps
// running in the plugin.
func (c *RPCClient) call(ctx context.Context, method string, args, reply any) error {
	pending := c.client.Go("Plugin."+method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case done := <-pending.Done:
		if done.Error != nil {
			return &model.TransportError{Op: "plugin " + method, Err: done.Error}
		}
		return nil
	}
}

func (c *RPCClient) Name() string {
	return c.info.Name
}

// Provider returns the provider reported by the plugin.
func (c *RPCClient) Provider() model.Provider {
	if c.info.Provider == "" {
		return model.ProviderPlugin
	}
	return model.Provider(c.info.Provider)
}

func (c *RPCClient) SupportsCompletions() bool {
	return c.info.SupportsCompletions
}

func (c *RPCClient) StreamComplete(ctx context.Context, prompt string, opts *model.CompletionOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		args, err := encodeOpen(streamComplete, nil, opts)
		if err != nil {
			yield("", err)
			return
		}
		args.Prompt = prompt

		for chunk, err := range c.stream(ctx, args) {
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

func (c *RPCClient) StreamChat(ctx context.Context, messages []*model.ChatMessage, opts *model.CompletionOptions) iter.Seq2[*model.Fragment, error] {
	return func(yield func(*model.Fragment, error) bool) {
		if err := model.ValidateConversation(messages); err != nil {
			yield(nil, err)
			return
		}

		args, err := encodeOpen(streamChat, messages, opts)
		if err != nil {
			yield(nil, err)
			return
		}

		for chunk, err := range c.stream(ctx, args) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(model.NewFragment(chunk), nil) {
				return
			}
		}
	}
}

// stream opens a remote stream and pulls it chunk by chunk. The remote
// stream is closed on every exit path; cancellation ends it silently.
func (c *RPCClient) stream(ctx context.Context, args *OpenArgs) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if ctx.Err() != nil {
			return
		}

		var opened OpenReply
		pending := c.client.Go("Plugin.Open", args, &opened, make(chan *rpc.Call, 1))
		select {
		case <-ctx.Done():
			// Close the stream once the in-flight Open lands.
			go func() {
				if call := <-pending.Done; call.Error == nil {
					c.closeStream(opened.StreamID)
				}
			}()
			return
		case call := <-pending.Done:
			if call.Error != nil {
				yield("", &model.TransportError{Op: "plugin Open", Err: call.Error})
				return
			}
		}

		done := false
		defer func() {
			if !done {
				c.closeStream(opened.StreamID)
			}
		}()

		for {
			if ctx.Err() != nil {
				return
			}

			var next NextReply
			if err := c.call(ctx, "Next", StreamArgs{StreamID: opened.StreamID}, &next); err != nil {
				if ctx.Err() == nil {
					yield("", err)
				}
				return
			}

			if next.Done {
				done = true
				if next.Err != nil && ctx.Err() == nil {
					yield("", decodeError(next.Err))
				}
				return
			}

			if ctx.Err() != nil || !yield(next.Chunk, nil) {
				return
			}
		}
	}
}

func (c *RPCClient) closeStream(id string) {
	var ok bool
	_ = c.client.Call("Plugin.Close", StreamArgs{StreamID: id}, &ok)
}

func (c *RPCClient) IsServiceAvailable(ctx context.Context) bool {
	var ok bool
	if err := c.call(ctx, "Available", "", &ok); err != nil {
		return false
	}
	return ok
}

func (c *RPCClient) ListModels(ctx context.Context) ([]string, error) {
	var reply ModelsReply
	if err := c.call(ctx, "ListModels", "", &reply); err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, decodeError(reply.Err)
	}
	return reply.Models, nil
}

func (c *RPCClient) SendAgentMessage(ctx context.Context, sourceAgent, targetAgent, message string) (string, error) {
	var reply AgentReply
	args := AgentArgs{Source: sourceAgent, Target: targetAgent, Message: message}
	if err := c.call(ctx, "SendAgentMessage", args, &reply); err != nil {
		return "", err
	}
	if reply.Err != nil {
		return "", decodeError(reply.Err)
	}
	return reply.Ack, nil
}

// Close shuts the remote provider down. It does not stop the plugin process.
func (c *RPCClient) Close() error {
	var ok bool
	if err := c.client.Call("Plugin.Shutdown", "", &ok); err != nil {
		return fmt.Errorf("plugin shutdown: %w", err)
	}
	return nil
}

func encodeOpen(kind string, messages []*model.ChatMessage, opts *model.CompletionOptions) (*OpenArgs, error) {
	args := &OpenArgs{Kind: kind}

	if messages != nil {
		data, err := json.Marshal(messages)
		if err != nil {
			return nil, fmt.Errorf("%w: encode messages: %v", model.ErrInvalidRequest, err)
		}
		args.Messages = data
	}
	if opts != nil {
		data, err := json.Marshal(opts)
		if err != nil {
			return nil, fmt.Errorf("%w: encode options: %v", model.ErrInvalidRequest, err)
		}
		args.Options = data
	}
	return args, nil
}

var (
	_ model.LLM            = (*RPCClient)(nil)
	_ model.AgentMessenger = (*RPCClient)(nil)
)
