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

package observability

import (
	"context"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// MemoryExporter is a SpanExporter that keeps finished spans in memory.
// It backs the "memory" tracing exporter and is what tests inspect.
//
// Thread-safe for concurrent reads and writes.
type MemoryExporter struct {
	mu      sync.RWMutex
	spans   []*RecordedSpan
	maxSize int
}

// RecordedSpan contains captured span information.
type RecordedSpan struct {
	TraceID      string            `json:"trace_id"`
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	Name         string            `json:"name"`
	DurationMs   float64           `json:"duration_ms"`
	Attributes   map[string]string `json:"attributes"`
	Status       string            `json:"status"`
	StatusMsg    string            `json:"status_message,omitempty"`
	Errors       int               `json:"errors,omitempty"`
}

// NewMemoryExporter creates a MemoryExporter retaining the last 1000 spans.
func NewMemoryExporter() *MemoryExporter {
	return &MemoryExporter{maxSize: 1000}
}

// WithMaxSize sets the maximum number of spans to retain.
func (e *MemoryExporter) WithMaxSize(size int) *MemoryExporter {
	e.maxSize = size
	return e
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *MemoryExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, span := range spans {
		e.spans = append(e.spans, convertSpan(span))
	}
	if excess := len(e.spans) - e.maxSize; e.maxSize > 0 && excess > 0 {
		e.spans = append([]*RecordedSpan(nil), e.spans[excess:]...)
	}
	return nil
}

func convertSpan(span sdktrace.ReadOnlySpan) *RecordedSpan {
	start, end := span.StartTime(), span.EndTime()

	rs := &RecordedSpan{
		TraceID:    span.SpanContext().TraceID().String(),
		SpanID:     span.SpanContext().SpanID().String(),
		Name:       span.Name(),
		DurationMs: float64(end.Sub(start).Nanoseconds()) / 1e6,
		Attributes: make(map[string]string, len(span.Attributes())),
		Status:     span.Status().Code.String(),
		StatusMsg:  span.Status().Description,
	}
	if span.Parent().HasSpanID() {
		rs.ParentSpanID = span.Parent().SpanID().String()
	}
	for _, attr := range span.Attributes() {
		rs.Attributes[string(attr.Key)] = attr.Value.Emit()
	}
	for _, event := range span.Events() {
		if event.Name == "exception" {
			rs.Errors++
		}
	}
	return rs
}

// Shutdown implements sdktrace.SpanExporter.
func (e *MemoryExporter) Shutdown(context.Context) error {
	return nil
}

// Spans returns all captured spans, oldest first.
func (e *MemoryExporter) Spans() []*RecordedSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*RecordedSpan(nil), e.spans...)
}

// SpansByName returns all spans with the given name.
func (e *MemoryExporter) SpansByName(name string) []*RecordedSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var result []*RecordedSpan
	for _, span := range e.spans {
		if span.Name == name {
			result = append(result, span)
		}
	}
	return result
}

// Reset removes all captured spans.
func (e *MemoryExporter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = nil
}

var _ sdktrace.SpanExporter = (*MemoryExporter)(nil)
