package observability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kadirpekel/mosaico/pkg/model"
)

func resetGlobals(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		SetGlobalMetrics(nil)
	})
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, "otlp", cfg.Tracing.Exporter)
	assert.Equal(t, DefaultOTLPEndpoint, cfg.Tracing.Endpoint)
	assert.Equal(t, DefaultServiceName, cfg.Tracing.ServiceName)
	assert.Equal(t, 1.0, cfg.Tracing.SamplingRate)
	assert.True(t, cfg.Tracing.IsInsecure())
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Endpoint)
	assert.Equal(t, DefaultNamespace, cfg.Metrics.Namespace)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "disabled_tracing_skips_checks",
			cfg:  Config{Tracing: TracingConfig{Exporter: "bogus"}},
		},
		{
			name:    "bad_exporter",
			cfg:     Config{Tracing: TracingConfig{Enabled: true, Exporter: "jaeger"}},
			wantErr: "invalid exporter",
		},
		{
			name:    "bad_sampling_rate",
			cfg:     Config{Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 2}},
			wantErr: "sampling_rate",
		},
		{
			name:    "bad_metrics_path",
			cfg:     Config{Metrics: MetricsConfig{Enabled: true, Endpoint: "metrics"}},
			wantErr: "must start with '/'",
		},
		{
			name: "memory_exporter",
			cfg:  Config{Tracing: TracingConfig{Enabled: true, Exporter: "memory", SamplingRate: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitGlobalTracer_Disabled(t *testing.T) {
	tp, memory, err := InitGlobalTracer(context.Background(), TracingConfig{})
	require.NoError(t, err)
	assert.Nil(t, memory)
	assert.NotNil(t, tp)
}

func TestSpans_RecordedInMemory(t *testing.T) {
	resetGlobals(t)

	cfg := TracingConfig{Enabled: true, Exporter: "memory"}
	cfg.SetDefaults()
	_, memory, err := InitGlobalTracer(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, memory)

	_, span := StartSpan(context.Background(), SpanChat,
		attribute.String(AttrLLMProvider, "mosaico"),
		attribute.String(AttrLLMModel, "m1"),
	)
	EndSpan(span, &model.TransportError{Op: "chat", Err: errors.New("refused")})

	_, ok := StartSpan(context.Background(), SpanHealth)
	EndSpan(ok, nil)

	chats := memory.SpansByName(SpanChat)
	require.Len(t, chats, 1)
	assert.Equal(t, "mosaico", chats[0].Attributes[AttrLLMProvider])
	assert.Equal(t, "m1", chats[0].Attributes[AttrLLMModel])
	assert.Equal(t, "transport", chats[0].Attributes[AttrErrorKind])
	assert.Equal(t, "Error", chats[0].Status)
	assert.Equal(t, 1, chats[0].Errors)

	health := memory.SpansByName(SpanHealth)
	require.Len(t, health, 1)
	assert.Equal(t, "Unset", health[0].Status)
	assert.Len(t, memory.Spans(), 2)

	memory.Reset()
	assert.Empty(t, memory.Spans())
}

func TestEndSpan_CancellationIsNotAFailure(t *testing.T) {
	resetGlobals(t)

	cfg := TracingConfig{Enabled: true, Exporter: "memory"}
	cfg.SetDefaults()
	_, memory, err := InitGlobalTracer(context.Background(), cfg)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), SpanChat)
	EndSpan(span, context.Canceled)

	spans := memory.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "Unset", spans[0].Status)
	assert.Empty(t, spans[0].Attributes[AttrErrorKind])
}

func TestInitGlobalTracer_Stdout(t *testing.T) {
	resetGlobals(t)

	var buf bytes.Buffer
	prev := stdoutWriter
	stdoutWriter = &buf
	t.Cleanup(func() { stdoutWriter = prev })

	cfg := TracingConfig{Enabled: true, Exporter: "stdout"}
	cfg.SetDefaults()
	tp, _, err := InitGlobalTracer(context.Background(), cfg)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), SpanAgentSend)
	EndSpan(span, nil)

	require.NoError(t, tp.(*sdktrace.TracerProvider).Shutdown(context.Background()))
	assert.Contains(t, buf.String(), SpanAgentSend)
}

func TestMemoryExporter_MaxSize(t *testing.T) {
	exporter := NewMemoryExporter().WithMaxSize(2)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	tracer := tp.Tracer("test")
	for _, name := range []string{"a", "b", "c"} {
		_, span := tracer.Start(context.Background(), name)
		span.End()
	}

	spans := exporter.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, "b", spans[0].Name)
	assert.Equal(t, "c", spans[1].Name)
}

func TestInitMetrics_Disabled(t *testing.T) {
	m, err := InitMetrics(MetricsConfig{})
	require.NoError(t, err)
	assert.IsType(t, NoopMetrics{}, m)

	rec := httptest.NewRecorder()
	Handler(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitMetrics_Scrape(t *testing.T) {
	cfg := MetricsConfig{Enabled: true}
	cfg.SetDefaults()

	m, err := InitMetrics(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordLLMCall(ctx, "mosaico", "m1", OpChat, 120*time.Millisecond, 3, nil)
	m.RecordLLMCall(ctx, "mosaico", "m1", OpModels, 10*time.Millisecond, 0, &model.ProtocolError{Op: "models", StatusCode: 500})
	m.RecordAgentMessage(ctx, "A", "B", 5*time.Millisecond, nil)

	rec := httptest.NewRecorder()
	Handler(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "mosaico_llm_requests_total")
	assert.Contains(t, body, "mosaico_llm_errors_total")
	assert.Contains(t, body, "mosaico_llm_fragments_total")
	assert.Contains(t, body, "mosaico_agent_messages_total")
	assert.Contains(t, body, `kind="protocol"`)
	assert.Contains(t, body, `target="B"`)
}

func TestGlobalMetrics(t *testing.T) {
	resetGlobals(t)

	assert.IsType(t, NoopMetrics{}, GetGlobalMetrics())

	custom := &PrometheusMetrics{}
	SetGlobalMetrics(custom)
	assert.Same(t, custom, GetGlobalMetrics())

	// Zero-value recorder must be safe to call.
	custom.RecordLLMCall(context.Background(), "p", "m", OpChat, time.Second, 1, nil)
	custom.RecordAgentMessage(context.Background(), "a", "b", time.Second, nil)

	SetGlobalMetrics(nil)
	assert.IsType(t, NoopMetrics{}, GetGlobalMetrics())
}

func TestManager_Lifecycle(t *testing.T) {
	resetGlobals(t)

	mgr := NewManager(Config{
		Tracing: TracingConfig{Enabled: true, Exporter: "memory"},
		Metrics: MetricsConfig{Enabled: true, Address: "127.0.0.1:0"},
	})
	require.NoError(t, mgr.Initialize(context.Background()))
	require.NotNil(t, mgr.MemoryExporter())
	assert.Same(t, mgr.Metrics(), GetGlobalMetrics())

	GetGlobalMetrics().RecordLLMCall(context.Background(), "mosaico", "m1", OpHealth, time.Millisecond, 0, nil)

	addr, err := mgr.ServeMetrics()
	require.NoError(t, err)
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + DefaultMetricsPath)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "mosaico_llm_requests_total")

	resp, err = http.Post("http://"+addr+DefaultMetricsPath, "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/other")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, mgr.Shutdown(context.Background()))
	assert.IsType(t, NoopMetrics{}, GetGlobalMetrics())
}

func TestManager_InvalidConfig(t *testing.T) {
	mgr := NewManager(Config{Tracing: TracingConfig{Enabled: true, Exporter: "zipkin"}})
	err := mgr.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid observability config")
}

func TestNoopManager(t *testing.T) {
	mgr := NoopManager()
	require.NoError(t, mgr.Initialize(context.Background()))

	addr, err := mgr.ServeMetrics()
	require.NoError(t, err)
	assert.Empty(t, addr)
	assert.Nil(t, mgr.MemoryExporter())
	require.NoError(t, mgr.Shutdown(context.Background()))
}
