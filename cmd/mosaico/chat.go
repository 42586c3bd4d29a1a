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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/kadirpekel/mosaico/pkg/model"
)

// ChatCmd streams an assistant reply to stdout.
type ChatCmd struct {
	Message []string `arg:"" optional:"" help:"Message to send. Omit to read turns from stdin."`

	System string `short:"s" help:"System prompt sent with every turn."`
	Data   string `help:"JSON object sent as a structured data part with the message." placeholder:"JSON"`

	CompletionFlags `embed:""`
}

// CompletionFlags are the per-call generation options.
type CompletionFlags struct {
	Temperature *float64          `help:"Sampling temperature (0-2)."`
	MaxTokens   int               `name:"max-tokens" help:"Maximum response length."`
	Stop        []string          `help:"Stop sequences."`
	Meta        map[string]string `help:"Metadata forwarded to the backend (key=value)." placeholder:"KEY=VALUE"`
}

func (f *CompletionFlags) options() *model.CompletionOptions {
	return &model.CompletionOptions{
		Temperature: f.Temperature,
		MaxTokens:   f.MaxTokens,
		Stop:        f.Stop,
		Metadata:    f.Meta,
	}
}

func (c *ChatCmd) Run(ctx context.Context, cli *CLI) error {
	s, err := cli.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	llm, err := s.LLM(ctx, cli.LLM)
	if err != nil {
		return err
	}

	if len(c.Message) > 0 || c.Data != "" {
		msg, err := c.userMessage(strings.Join(c.Message, " "))
		if err != nil {
			return err
		}
		_, err = streamReply(ctx, cli.out(), llm, c.conversation(nil, msg), c.options())
		return err
	}

	return c.repl(ctx, cli, llm)
}

// userMessage builds the user turn. With --data the text and the payload
// become separate parts.
func (c *ChatCmd) userMessage(text string) (*model.ChatMessage, error) {
	if c.Data == "" {
		return model.NewTextMessage(model.RoleUser, text), nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(c.Data), &data); err != nil {
		return nil, fmt.Errorf("--data must be a JSON object: %w", err)
	}

	msg := &model.ChatMessage{Role: model.RoleUser}
	if text != "" {
		msg.Parts = append(msg.Parts, model.ContentPart{Type: model.ContentPartText, Text: text})
	}
	msg.Parts = append(msg.Parts, model.ContentPart{Type: model.ContentPartData, Data: data})
	return msg, nil
}

func (c *ChatCmd) conversation(history []*model.ChatMessage, next *model.ChatMessage) []*model.ChatMessage {
	messages := make([]*model.ChatMessage, 0, len(history)+2)
	if c.System != "" {
		messages = append(messages, model.NewTextMessage(model.RoleSystem, c.System))
	}
	messages = append(messages, history...)
	return append(messages, next)
}

// repl reads one user turn per line and keeps the conversation history.
func (c *ChatCmd) repl(ctx context.Context, cli *CLI, llm model.LLM) error {
	out := cli.out()
	interactive := isTerminal(cli.in())
	if interactive {
		fmt.Fprintf(out, "\nChat with %s (type /exit to quit, /reset to clear history)\n\n", llm.Name())
	}

	var history []*model.ChatMessage
	scanner := bufio.NewScanner(cli.in())
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Fprint(out, "You: ")
		}
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "exit", "/exit", "/quit":
			return nil
		case "/reset":
			history = nil
			continue
		}

		user := model.NewTextMessage(model.RoleUser, input)
		if interactive {
			fmt.Fprintf(out, "\n%s: ", llm.Name())
		}
		reply, err := streamReply(ctx, out, llm, c.conversation(history, user), c.options())
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if interactive {
			fmt.Fprintln(out)
		}
		history = append(history, user, reply)
	}
	return scanner.Err()
}

// streamReply writes fragments as they arrive and returns the aggregated
// reply. Output already written stays written when the stream fails.
func streamReply(ctx context.Context, w io.Writer, llm model.LLM, messages []*model.ChatMessage, opts *model.CompletionOptions) (*model.ChatMessage, error) {
	agg := model.NewAggregator()
	var streamErr error
	for fragment, err := range llm.StreamChat(ctx, messages, opts) {
		if err != nil {
			streamErr = err
			break
		}
		agg.Add(fragment)
		if _, err := io.WriteString(w, fragment.Content); err != nil {
			return agg.Message(), err
		}
	}

	if agg.Fragments() > 0 {
		fmt.Fprintln(w)
	}
	return agg.Message(), streamErr
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
