package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"", TypeFile, false},
		{"file", TypeFile, false},
		{"memory", TypeMemory, false},
		{"inline", TypeMemory, false},
		{"consul", "", true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNew(t *testing.T) {
	_, err := New(ProviderConfig{Type: TypeFile})
	assert.Error(t, err)

	_, err = New(ProviderConfig{Type: "etcd", Path: "x"})
	assert.Error(t, err)

	p, err := New(ProviderConfig{Type: TypeMemory, Data: []byte("a: 1")})
	require.NoError(t, err)
	assert.Equal(t, TypeMemory, p.Type())
}

func TestMemoryProvider(t *testing.T) {
	p := NewMemoryProvider([]byte("v1"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := p.Watch(ctx)
	require.NoError(t, err)

	data, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	p.Set([]byte("v2"))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	data, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, p.Close())
	_, err = p.Load(context.Background())
	assert.Error(t, err)
}

func TestFileProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mosaico.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llms: {}"), 0o600))

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "llms: {}", string(data))
	assert.Equal(t, TypeFile, p.Type())

	missing, err := NewFileProvider(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	_, err = missing.Load(context.Background())
	assert.Error(t, err)
}

func TestFileProvider_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mosaico.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1"), 0o600))

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := p.Watch(ctx)
	require.NoError(t, err)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("a: 2"), 0o600))

	select {
	case _, ok := <-ch:
		require.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	_, err = p.Watch(ctx)
	assert.Error(t, err, "second watch must fail")
}
