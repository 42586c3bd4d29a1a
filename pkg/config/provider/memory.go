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

package provider

import (
	"context"
	"fmt"
	"sync"
)

// MemoryProvider serves a config document held in memory. Set replaces the
// document and notifies watchers.
type MemoryProvider struct {
	mu       sync.Mutex
	data     []byte
	watchers []chan struct{}
	closed   bool
}

// NewMemoryProvider creates a provider holding data.
func NewMemoryProvider(data []byte) *MemoryProvider {
	return &MemoryProvider{data: append([]byte(nil), data...)}
}

// Type returns TypeMemory.
func (p *MemoryProvider) Type() Type {
	return TypeMemory
}

// Load returns a copy of the current document.
func (p *MemoryProvider) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("provider is closed")
	}
	return append([]byte(nil), p.data...), nil
}

// Set replaces the document and signals every active watcher.
func (p *MemoryProvider) Set(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data = append([]byte(nil), data...)
	for _, ch := range p.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch returns a channel signalled by Set until ctx is cancelled.
func (p *MemoryProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("provider is closed")
	}

	ch := make(chan struct{}, 1)
	p.watchers = append(p.watchers, ch)

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		p.remove(ch)
	}()

	return ch, nil
}

// remove closes ch and drops it. Caller holds p.mu.
func (p *MemoryProvider) remove(ch chan struct{}) {
	for i, w := range p.watchers {
		if w == ch {
			p.watchers = append(p.watchers[:i], p.watchers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes all watcher channels.
func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for _, ch := range p.watchers {
		close(ch)
	}
	p.watchers = nil
	return nil
}

var _ Provider = (*MemoryProvider)(nil)
