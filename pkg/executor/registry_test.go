package executor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/convoflow/pkg/models"
)

func noopExecutor() Executor {
	return NewExecutorFunc(
		func(context.Context, *models.Action, map[string]any) (map[string]any, error) {
			return nil, nil
		},
		nil,
	)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("webhook", noopExecutor()))

	exec, err := r.Get("webhook")
	require.NoError(t, err)
	assert.NotNil(t, exec)
	assert.True(t, r.Has("webhook"))
	assert.False(t, r.Has("missing"))
}

func TestRegistryRejectsEmptyNameAndNil(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("", noopExecutor()))
	assert.Error(t, r.Register("x", nil))
}

func TestRegistryReplaceKeepsLatest(t *testing.T) {
	r := NewRegistry()
	first := noopExecutor()
	second := noopExecutor()
	require.NoError(t, r.Register("a", first))
	require.NoError(t, r.Register("a", second))

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("a", noopExecutor()))

	require.NoError(t, r.Unregister("a"))
	assert.False(t, r.Has("a"))
	assert.ErrorIs(t, r.Unregister("a"), models.ErrExecutorNotFound)
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("a", noopExecutor()))
	require.NoError(t, r.Register("b", noopExecutor()))

	assert.ElementsMatch(t, []string{"a", "b"}, r.List())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := string(rune('a' + n%4))
			_ = r.Register(name, noopExecutor())
			_, _ = r.Get(name)
			_ = r.Has(name)
			_ = r.List()
		}(i)
	}
	wg.Wait()
}
