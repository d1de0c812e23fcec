package websession

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MockStore
	clears atomic.Int32
	ok     bool
}

func (c *countingStore) Clear(ctx context.Context) bool {
	c.clears.Add(1)
	return c.ok
}

func TestNewSweeper_InvalidSchedule(t *testing.T) {
	_, err := NewSweeper(newMockStore(), SweeperConfig{Schedule: "every now and then"})
	assert.Error(t, err)
}

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	store := newMemFileStore(t, newTestCodec(t))

	expired, err := NewSession(time.Now().Add(-time.Hour).UnixMilli())
	require.NoError(t, err)
	require.True(t, store.Save(ctx, expired))

	sweeper, err := NewSweeper(store, SweeperConfig{})
	require.NoError(t, err)
	assert.True(t, sweeper.Sweep(ctx))
	assert.Nil(t, store.Read(ctx, expired.ID()))

	failing := &countingStore{MockStore: newMockStore()}
	sweeper, err = NewSweeper(failing, SweeperConfig{})
	require.NoError(t, err)
	assert.False(t, sweeper.Sweep(ctx))
}

func TestSweeper_StartStop(t *testing.T) {
	store := &countingStore{MockStore: newMockStore(), ok: true}
	sweeper, err := NewSweeper(store, SweeperConfig{Schedule: "@every 1s", Timeout: time.Second})
	require.NoError(t, err)

	sweeper.Start()
	assert.Eventually(t, func() bool { return store.clears.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	sweeper.Stop()
}
