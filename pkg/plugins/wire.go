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
	"errors"

	"github.com/kadirpekel/mosaico/pkg/model"
)

// Stream kinds accepted by Open.
const (
	streamChat     = "chat"
	streamComplete = "complete"
)

// InfoReply describes the served provider.
type InfoReply struct {
	Name                string
	Provider            string
	SupportsCompletions bool
	AgentMessaging      bool
}

// OpenArgs starts a stream. Messages and Options are JSON so that
// structured payloads survive gob encoding.
type OpenArgs struct {
	Kind     string
	Prompt   string
	Messages []byte
	Options  []byte
}

// OpenReply identifies an open stream.
type OpenReply struct {
	StreamID string
}

// StreamArgs addresses an open stream.
type StreamArgs struct {
	StreamID string
}

// NextReply carries one chunk, a terminal error, or the end of the stream.
type NextReply struct {
	Chunk string
	Err   *WireError
	Done  bool
}

// ModelsReply answers ListModels.
type ModelsReply struct {
	Models []string
	Err    *WireError
}

// AgentArgs carries a SendAgentMessage call.
type AgentArgs struct {
	Source  string
	Target  string
	Message string
}

// AgentReply answers SendAgentMessage.
type AgentReply struct {
	Ack string
	Err *WireError
}

// WireError carries a model error across the process boundary without
// losing its kind.
type WireError struct {
	Kind       string
	Op         string
	URL        string
	StatusCode int
	Code       string
	Message    string
}

func encodeError(err error) *WireError {
	if err == nil {
		return nil
	}

	we := &WireError{Kind: model.ErrorKind(err), Message: err.Error()}

	var te *model.TransportError
	var pe *model.ProtocolError
	switch {
	case errors.As(err, &te):
		we.Op, we.URL = te.Op, te.URL
		if te.Err != nil {
			we.Message = te.Err.Error()
		}
	case errors.As(err, &pe):
		we.Op, we.StatusCode, we.Code, we.Message = pe.Op, pe.StatusCode, pe.Code, pe.Message
	}
	return we
}

// remoteError is the cause of a transport error raised inside a plugin.
type remoteError string

func (e remoteError) Error() string { return string(e) }

func decodeError(we *WireError) error {
	if we == nil {
		return nil
	}

	switch we.Kind {
	case "transport":
		return &model.TransportError{Op: we.Op, URL: we.URL, Err: remoteError(we.Message)}
	case "protocol":
		return &model.ProtocolError{Op: we.Op, StatusCode: we.StatusCode, Code: we.Code, Message: we.Message}
	case "unsupported":
		return &kindError{msg: we.Message, kind: model.ErrUnsupportedOperation}
	case "invalid_request":
		return &kindError{msg: we.Message, kind: model.ErrInvalidRequest}
	default:
		return errors.New(we.Message)
	}
}

// kindError keeps the remote message verbatim while matching a sentinel.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }
