package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	ID string
}

func TestRegistry_Register(t *testing.T) {
	r := New[testItem]("item")

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{name: "valid", key: "a"},
		{name: "empty_name", key: "", wantErr: ErrEmptyName},
		{name: "duplicate", key: "a", wantErr: ErrDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.key, testItem{ID: tt.key})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRegistry_Get(t *testing.T) {
	r := New[testItem]("llm")
	require.NoError(t, r.Register("default", testItem{ID: "1"}))

	item, ok := r.Get("default")
	require.True(t, ok)
	assert.Equal(t, "1", item.ID)

	_, ok = r.Get("missing")
	assert.False(t, ok)

}

func TestRegistry_NamesSorted(t *testing.T) {
	r := New[int]("n")
	for i, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(name, i))
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_RemoveAndDrain(t *testing.T) {
	r := New[int]("n")
	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Register("b", 2))

	v, err := r.Remove("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = r.Remove("a")
	assert.ErrorIs(t, err, ErrNotFound)

	drained := r.Drain()
	assert.Equal(t, map[string]int{"b": 2}, drained)
	assert.Zero(t, r.Len())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := New[int]("n")

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Register(fmt.Sprintf("item-%d", i), i)
			r.Names()
			r.Get("item-0")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
}
