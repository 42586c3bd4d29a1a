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
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"

	"github.com/kadirpekel/mosaico/pkg/httpclient"
	"github.com/kadirpekel/mosaico/pkg/model"
)

// call is the per-invocation HTTP state. It records whether the network
// itself failed so A2A errors can be classified without relying on how the
// SDK wraps them.
type call struct {
	mu     sync.Mutex
	netErr error
	client *http.Client
}

func (c *Client) newCall() *call {
	base := c.a2aHTTP.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	cl := &call{}
	cl.client = &http.Client{
		Transport: &recordingTransport{base: base, call: cl},
	}
	return cl
}

func (cl *call) record(err error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.netErr == nil {
		cl.netErr = err
	}
}

func (cl *call) networkError() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.netErr
}

type recordingTransport struct {
	base http.RoundTripper
	call *call
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.call.record(err)
		return nil, err
	}
	resp.Body = &recordingBody{ReadCloser: resp.Body, call: t.call}
	return resp, nil
}

type recordingBody struct {
	io.ReadCloser
	call *call
}

func (b *recordingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		b.call.record(err)
	}
	return n, err
}

// dial resolves the agent card and opens an A2A client bound to cl.
// The caller must Destroy the returned client.
func (c *Client) dial(ctx context.Context, cl *call) (*a2aclient.Client, error) {
	card, err := agentcard.NewResolver(cl.client).Resolve(ctx, c.apiBase)
	if err != nil {
		return nil, cl.classify("resolve agent card", c.apiBase+agentCardPath, err)
	}

	client, err := a2aclient.NewFromCard(ctx, card, a2aclient.WithJSONRPCTransport(cl.client))
	if err != nil {
		return nil, &model.ProtocolError{
			Op:      "connect",
			Message: fmt.Sprintf("agent %q: %v", card.Name, err),
			Err:     err,
		}
	}
	return client, nil
}

// classify maps an A2A or HTTP error onto the provider error taxonomy.
func (cl *call) classify(op, url string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &model.TransportError{Op: op, URL: url, Err: err}
	}
	if cl != nil {
		if recorded := cl.networkError(); recorded != nil {
			return &model.TransportError{Op: op, URL: url, Err: fmt.Errorf("%w (%v)", err, recorded)}
		}
	}
	return &model.ProtocolError{Op: op, Message: err.Error(), Err: err}
}

// statusError builds a ProtocolError from a non-2xx REST response.
func statusError(op string, resp *http.Response) error {
	msg := httpclient.ExtractErrorMessage(resp.Body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &model.ProtocolError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}

// taskError reports a task that ended in failure.
func taskError(op string, status a2a.TaskStatus) error {
	msg := "task " + string(status.State)
	if status.Message != nil {
		if text := partsText(status.Message.Parts); text != "" {
			msg = text
		}
	}
	return &model.ProtocolError{Op: op, Code: string(status.State), Message: msg}
}
