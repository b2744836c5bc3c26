package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/internal/testinfra"
	"github.com/dmitrymomot/subcycle/svc/lifecycle"
)

func testDeduper(t *testing.T, d lifecycle.Deduper) {
	ctx := context.Background()

	first, err := d.Mark(ctx, "reminder:a:7", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Mark(ctx, "reminder:a:7", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := d.Mark(ctx, "reminder:a:3", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)

	short, err := d.Mark(ctx, "reminder:b:1", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, short)
	assert.Eventually(t, func() bool {
		ok, err := d.Mark(ctx, "reminder:b:1", time.Hour)
		return err == nil && ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMemoryDeduper(t *testing.T) {
	t.Parallel()
	testDeduper(t, lifecycle.NewMemoryDeduper())
}

func TestRedisDeduper(t *testing.T) {
	t.Parallel()
	client := testinfra.Redis(t)
	testDeduper(t, lifecycle.NewRedisDeduper(client, "subcycle-test:"))
}
