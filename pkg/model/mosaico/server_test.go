package mosaico

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
)

type runFunc func(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error

// testAgent is an a2asrv.AgentExecutor replaying a scripted reply and
// recording every message it receives.
type testAgent struct {
	run runFunc

	mu       sync.Mutex
	received []*a2a.Message
}

func (a *testAgent) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
	a.mu.Lock()
	a.received = append(a.received, reqCtx.Message)
	a.mu.Unlock()
	return a.run(ctx, reqCtx, q)
}

func (a *testAgent) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
	ev := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	ev.Final = true
	return q.Write(ctx, ev)
}

func (a *testAgent) messages() []*a2a.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*a2a.Message(nil), a.received...)
}

var _ a2asrv.AgentExecutor = (*testAgent)(nil)

// testServer is an in-process Mosaico service.
type testServer struct {
	*httptest.Server
	agent *testAgent

	mu         sync.Mutex
	authHeader string
	requests   int
	active     int

	health func(w http.ResponseWriter, r *http.Request)
	models func(w http.ResponseWriter, r *http.Request)
}

func newTestServer(t *testing.T, run runFunc) *testServer {
	t.Helper()

	ts := &testServer{
		agent: &testAgent{run: run},
		health: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		models: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"data": []map[string]any{{"id": "mosaico-default"}}})
		},
	}

	mux := http.NewServeMux()
	ts.Server = httptest.NewServer(ts.track(mux))
	t.Cleanup(ts.Close)

	mux.Handle(a2asrv.WellKnownAgentCardPath, a2asrv.NewStaticAgentCardHandler(testCard(ts.URL)))
	mux.HandleFunc(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		h := ts.health
		ts.mu.Unlock()
		h(w, r)
	})
	mux.HandleFunc(modelsPath, func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		h := ts.models
		ts.mu.Unlock()
		h(w, r)
	})
	mux.Handle("/", a2asrv.NewJSONRPCHandler(a2asrv.NewHandler(ts.agent)))

	return ts
}

// newRawServer serves the agent card and hands every JSON-RPC call to rpc,
// for replies the a2asrv handler would never produce.
func newRawServer(t *testing.T, rpc http.HandlerFunc) string {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.Handle(a2asrv.WellKnownAgentCardPath, a2asrv.NewStaticAgentCardHandler(testCard(srv.URL)))
	mux.Handle("/", rpc)
	return srv.URL
}

func testCard(url string) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               "mosaico-test",
		Description:        "Scripted Mosaico agent",
		URL:                url,
		Version:            "1.0.0",
		ProtocolVersion:    "0.3.0",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills: []a2a.AgentSkill{{
			ID:          "chat",
			Name:        "chat",
			Description: "Conversational agent",
			Tags:        []string{"chat"},
		}},
		Capabilities:       a2a.AgentCapabilities{Streaming: true},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
	}
}

func (ts *testServer) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.requests++
		ts.active++
		if auth := r.Header.Get("Authorization"); auth != "" {
			ts.authHeader = auth
		}
		ts.mu.Unlock()

		defer func() {
			ts.mu.Lock()
			ts.active--
			ts.mu.Unlock()
		}()
		next.ServeHTTP(w, r)
	})
}

// activeRequests returns the number of handlers still running.
func (ts *testServer) activeRequests() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.active
}

func (ts *testServer) setHealth(h http.HandlerFunc) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.health = h
}

func (ts *testServer) setModels(h http.HandlerFunc) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.models = h
}

func (ts *testServer) requestCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.requests
}

func (ts *testServer) lastAuth() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.authHeader
}

func (ts *testServer) client(t *testing.T, cfg Config) *Client {
	t.Helper()
	cfg.APIBase = ts.URL
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// deadURL returns the address of a server that has already shut down.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func write(ctx context.Context, q eventqueue.Queue, event a2a.Event) error {
	if err := q.Write(ctx, event); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// startTask emits the submitted and working transitions the way a real
// agent does before producing output.
func startTask(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
	if reqCtx.StoredTask == nil {
		if err := write(ctx, q, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateSubmitted, nil)); err != nil {
			return err
		}
	}
	return write(ctx, q, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil))
}

func finishTask(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue, state a2a.TaskState, text string) error {
	var msg *a2a.Message
	if text != "" {
		msg = a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: text})
	}
	ev := a2a.NewStatusUpdateEvent(reqCtx, state, msg)
	ev.Final = true
	return write(ctx, q, ev)
}

// streamChunks replies with one artifact built from append-mode chunks.
func streamChunks(delay time.Duration, chunks ...string) runFunc {
	return func(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
		if err := startTask(ctx, reqCtx, q); err != nil {
			return err
		}

		var artifactID a2a.ArtifactID
		for i, chunk := range chunks {
			if i > 0 && delay > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
			}

			var ev *a2a.TaskArtifactUpdateEvent
			if i == 0 {
				ev = a2a.NewArtifactEvent(reqCtx, a2a.TextPart{Text: chunk})
				artifactID = ev.Artifact.ID
			} else {
				ev = a2a.NewArtifactUpdateEvent(reqCtx, artifactID, a2a.TextPart{Text: chunk})
			}
			if err := write(ctx, q, ev); err != nil {
				return err
			}
		}

		return finishTask(ctx, reqCtx, q, a2a.TaskStateCompleted, "")
	}
}

// replyWith answers with a direct agent message built from the request.
func replyWith(reply func(msg *a2a.Message) string) runFunc {
	return func(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
		return write(ctx, q, a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: reply(reqCtx.Message)}))
	}
}

func failWith(reason string) runFunc {
	return func(ctx context.Context, reqCtx *a2asrv.RequestContext, q eventqueue.Queue) error {
		if err := startTask(ctx, reqCtx, q); err != nil {
			return err
		}
		return finishTask(ctx, reqCtx, q, a2a.TaskStateFailed, reason)
	}
}

func messageText(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	return partsText(msg.Parts)
}
