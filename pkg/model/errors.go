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
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrUnsupportedOperation is returned when a provider is asked for a
	// capability it does not have, such as raw completion on a chat-only backend.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrTransport is the base error for network and connection failures.
	ErrTransport = errors.New("transport error")

	// ErrProtocol is the base error for malformed or error responses from a backend.
	ErrProtocol = errors.New("protocol error")

	// ErrInvalidRequest indicates the caller passed unusable input.
	ErrInvalidRequest = errors.New("invalid request")
)

// TransportError reports a failure to reach the backend.
// Use errors.As to extract it from a wrapped error chain.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s %s: transport error: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ProtocolError reports an error response or an unparseable reply.
type ProtocolError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Code != "":
		return fmt.Sprintf("%s: backend error %d (%s): %s", e.Op, e.StatusCode, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: backend error %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Code != "":
		return fmt.Sprintf("%s: backend error (%s): %s", e.Op, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s: backend error: %s", e.Op, e.Message)
	}
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// Unsupported wraps ErrUnsupportedOperation with the provider and operation names.
func Unsupported(provider Provider, op string) error {
	return fmt.Errorf("%s: %s: %w", provider, op, ErrUnsupportedOperation)
}

// ErrorKind classifies err for display. It returns "unsupported",
// "transport", "protocol", "invalid_request" or "unknown".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedOperation):
		return "unsupported"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "unknown"
	}
}
