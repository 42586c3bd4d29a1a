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

// Package registry provides a concurrency-safe named collection.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrEmptyName = errors.New("name cannot be empty")
	ErrDuplicate = errors.New("already registered")
	ErrNotFound  = errors.New("not found")
)

// Registry stores items by unique name.
type Registry[T any] struct {
	mu    sync.RWMutex
	kind  string
	items map[string]T
}

// New creates a Registry. kind names the item type in error messages.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:  kind,
		items: make(map[string]T),
	}
}

// Register adds item under name. Names must be unique.
func (r *Registry[T]) Register(name string, item T) error {
	if name == "" {
		return fmt.Errorf("%s: %w", r.kind, ErrEmptyName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return fmt.Errorf("%s %q %w", r.kind, name, ErrDuplicate)
	}
	r.items[name] = item
	return nil
}

// Get returns the item registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[name]
	return item, ok
}

// Names returns all registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Remove deletes and returns the item registered under name.
func (r *Registry[T]) Remove(name string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[name]
	if !ok {
		return item, fmt.Errorf("%s %q %w", r.kind, name, ErrNotFound)
	}
	delete(r.items, name)
	return item, nil
}

// Len returns the number of registered items.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Drain removes every item and returns them keyed by name.
func (r *Registry[T]) Drain() map[string]T {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.items
	r.items = make(map[string]T)
	return items
}
