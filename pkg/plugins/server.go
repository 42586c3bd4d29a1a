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
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kadirpekel/mosaico/pkg/model"
)

// RPCServer exposes a model.LLM over net/rpc. Exported methods follow the
// net/rpc calling convention; calls without arguments take an ignored string
// since gob cannot encode empty structs.
type RPCServer struct {
	impl model.LLM

	mu      sync.Mutex
	streams map[string]*serverStream
}

// serverStream serializes next and stop; iter.Pull2 forbids calling them
// concurrently.
type serverStream struct {
	mu     sync.Mutex
	next   func() (string, error, bool)
	stop   func()
	cancel context.CancelFunc
}

func (st *serverStream) pull() (string, error, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.next()
}

func (st *serverStream) close() {
	st.cancel()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stop()
}

func newRPCServer(impl model.LLM) *RPCServer {
	return &RPCServer{impl: impl, streams: make(map[string]*serverStream)}
}

func (s *RPCServer) Info(_ string, reply *InfoReply) error {
	_, agents := s.impl.(model.AgentMessenger)
	*reply = InfoReply{
		Name:                s.impl.Name(),
		Provider:            string(s.impl.Provider()),
		SupportsCompletions: s.impl.SupportsCompletions(),
		AgentMessaging:      agents,
	}
	return nil
}

func (s *RPCServer) Open(args OpenArgs, reply *OpenReply) error {
	var opts *model.CompletionOptions
	if len(args.Options) > 0 {
		opts = &model.CompletionOptions{}
		if err := json.Unmarshal(args.Options, opts); err != nil {
			return fmt.Errorf("decode options: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	var seq iter.Seq2[string, error]
	switch args.Kind {
	case streamChat:
		var messages []*model.ChatMessage
		if err := json.Unmarshal(args.Messages, &messages); err != nil {
			cancel()
			return fmt.Errorf("decode messages: %w", err)
		}
		seq = fragmentText(s.impl.StreamChat(ctx, messages, opts))
	case streamComplete:
		seq = s.impl.StreamComplete(ctx, args.Prompt, opts)
	default:
		cancel()
		return fmt.Errorf("unknown stream kind %q", args.Kind)
	}

	next, stop := iter.Pull2(seq)
	id := uuid.NewString()

	s.mu.Lock()
	s.streams[id] = &serverStream{next: next, stop: stop, cancel: cancel}
	s.mu.Unlock()

	slog.Debug("Plugin stream opened", "stream", id, "kind", args.Kind)
	reply.StreamID = id
	return nil
}

func (s *RPCServer) Next(args StreamArgs, reply *NextReply) error {
	s.mu.Lock()
	st, ok := s.streams[args.StreamID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown stream %q", args.StreamID)
	}

	chunk, err, ok := st.pull()
	switch {
	case !ok:
		reply.Done = true
		s.release(args.StreamID)
	case err != nil:
		reply.Err = encodeError(err)
		reply.Done = true
		s.release(args.StreamID)
	default:
		reply.Chunk = chunk
	}
	return nil
}

func (s *RPCServer) Close(args StreamArgs, reply *bool) error {
	s.release(args.StreamID)
	*reply = true
	return nil
}

func (s *RPCServer) release(id string) {
	s.mu.Lock()
	st, ok := s.streams[id]
	delete(s.streams, id)
	s.mu.Unlock()

	if ok {
		st.close()
		slog.Debug("Plugin stream closed", "stream", id)
	}
}

func (s *RPCServer) Available(_ string, reply *bool) error {
	*reply = s.impl.IsServiceAvailable(context.Background())
	return nil
}

func (s *RPCServer) ListModels(_ string, reply *ModelsReply) error {
	models, err := s.impl.ListModels(context.Background())
	reply.Models = models
	reply.Err = encodeError(err)
	return nil
}

func (s *RPCServer) SendAgentMessage(args AgentArgs, reply *AgentReply) error {
	messenger, ok := s.impl.(model.AgentMessenger)
	if !ok {
		reply.Err = encodeError(model.Unsupported(s.impl.Provider(), "agent messaging"))
		return nil
	}
	ack, err := messenger.SendAgentMessage(context.Background(), args.Source, args.Target, args.Message)
	reply.Ack = ack
	reply.Err = encodeError(err)
	return nil
}

// Shutdown stops every open stream and closes the provider.
func (s *RPCServer) Shutdown(_ string, reply *bool) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.release(id)
	}
	*reply = true
	return s.impl.Close()
}

// openStreams reports the number of live streams.
func (s *RPCServer) openStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

func fragmentText(seq iter.Seq2[*model.Fragment, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for f, err := range seq {
			if err != nil {
				yield("", err)
				return
			}
			if f == nil {
				continue
			}
			if !yield(f.Content, nil) {
				return
			}
		}
	}
}
