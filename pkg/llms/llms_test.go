package llms

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/mosaico/pkg/config"
	"github.com/kadirpekel/mosaico/pkg/model"
	"github.com/kadirpekel/mosaico/pkg/model/mosaico"
)

type stubLLM struct {
	name   string
	closed atomic.Bool
	err    error
}

func (s *stubLLM) Name() string                            { return s.name }
func (s *stubLLM) Provider() model.Provider                { return model.ProviderUnknown }
func (s *stubLLM) SupportsCompletions() bool               { return false }
func (s *stubLLM) IsServiceAvailable(context.Context) bool { return true }

func (s *stubLLM) ListModels(context.Context) ([]string, error) {
	return []string{s.name}, nil
}

func (s *stubLLM) StreamComplete(context.Context, string, *model.CompletionOptions) iter.Seq2[string, error] {
	return func(func(string, error) bool) {}
}

func (s *stubLLM) StreamChat(context.Context, []*model.ChatMessage, *model.CompletionOptions) iter.Seq2[*model.Fragment, error] {
	return func(func(*model.Fragment, error) bool) {}
}

func (s *stubLLM) Close() error {
	s.closed.Store(true)
	return s.err
}

func testConfig() *config.Config {
	cfg := &config.Config{
		LLMs: map[string]*config.LLMConfig{
			"default": {Type: config.LLMTypeMosaico, Model: "m1", APIBase: "http://127.0.0.1:1"},
			"local":   {Type: config.LLMTypePlugin, Plugin: "echo"},
		},
		Plugins: map[string]*config.PluginConfig{
			"echo": {Path: "/nonexistent/echo"},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestRegistry_GetMosaico(t *testing.T) {
	reg := NewRegistry(testConfig())
	defer reg.Close()

	llm, err := reg.Get(context.Background(), "")
	require.NoError(t, err)

	client, ok := llm.(*mosaico.Client)
	require.True(t, ok, "default LLM should be a mosaico client, got %T", llm)
	assert.Equal(t, "m1", client.Name())
	assert.Equal(t, model.ProviderMosaico, client.Provider())

	again, err := reg.Get(context.Background(), "default")
	require.NoError(t, err)
	assert.Same(t, llm, again)
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := NewRegistry(testConfig())

	_, err := reg.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestRegistry_PluginStartFailure(t *testing.T) {
	reg := NewRegistry(testConfig())

	_, err := reg.Get(context.Background(), "local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `llm "local"`)
	assert.Empty(t, reg.items.Names(), "failed providers must not be cached")
}

func TestRegistry_UnknownPlugin(t *testing.T) {
	cfg := testConfig()
	cfg.LLMs["local"].Plugin = "ghost"

	_, err := NewRegistry(cfg).Get(context.Background(), "local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown plugin "ghost"`)
}

func TestRegistry_ConcurrentGetCreatesOnce(t *testing.T) {
	var created atomic.Int32
	reg := NewRegistry(testConfig(), WithFactory(config.LLMTypeMosaico,
		func(_ context.Context, name string, _ *config.LLMConfig, _ *config.Config) (model.LLM, error) {
			created.Add(1)
			return &stubLLM{name: name}, nil
		}))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Get(context.Background(), "default")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
}

func TestRegistry_Close(t *testing.T) {
	stubs := map[string]*stubLLM{}
	reg := NewRegistry(testConfig(),
		WithFactory(config.LLMTypeMosaico, func(_ context.Context, name string, _ *config.LLMConfig, _ *config.Config) (model.LLM, error) {
			s := &stubLLM{name: name}
			stubs[name] = s
			return s, nil
		}),
		WithFactory(config.LLMTypePlugin, func(_ context.Context, name string, _ *config.LLMConfig, _ *config.Config) (model.LLM, error) {
			s := &stubLLM{name: name, err: errors.New("kill failed")}
			stubs[name] = s
			return s, nil
		}),
	)

	for _, name := range reg.Names() {
		_, err := reg.Get(context.Background(), name)
		require.NoError(t, err)
	}

	err := reg.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kill failed")
	for name, s := range stubs {
		assert.True(t, s.closed.Load(), "%s not closed", name)
	}
	assert.Zero(t, reg.items.Len())
}

func TestCreateLLMFromConfig(t *testing.T) {
	_, err := CreateLLMFromConfig(context.Background(), "x", nil, nil)
	require.Error(t, err)

	_, err = CreateLLMFromConfig(context.Background(), "x", &config.LLMConfig{Type: "openai"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")

	llm, err := CreateLLMFromConfig(context.Background(), "x",
		&config.LLMConfig{Type: config.LLMTypeMosaico, Model: "m2", APIBase: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)
	defer llm.Close()
	assert.Equal(t, "m2", llm.Name())
}
