package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authority/internal/authority/store"
	"github.com/aussiebroadwan/authority/internal/authority/store/drivers/memory"
	"github.com/aussiebroadwan/authority/internal/authority/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.NewStore()
	})
}

func TestCacheCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := memory.NewCache()

	in := []byte("abc")
	require.NoError(t, c.Put(ctx, "k", in))
	in[0] = 'x'

	out, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(out))

	out[0] = 'y'
	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(again))
}
