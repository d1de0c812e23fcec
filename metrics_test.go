package websession

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreMetrics_Instrument(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := NewStoreMetrics(reg)
	mock := newMockStore()
	store := metrics.Instrument("mock", mock)

	s, err := NewSession(time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, err)

	require.True(t, store.Save(ctx, s))
	require.NotNil(t, store.Read(ctx, s.ID()))
	require.Nil(t, store.Read(ctx, newTestToken(t)))
	require.True(t, store.Remove(ctx, s.ID()))
	require.False(t, store.Remove(ctx, s.ID()))
	require.True(t, store.Clear(ctx))
	require.NoError(t, store.Close())

	ops := metrics.operations
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("mock", "save", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("mock", "read", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("mock", "read", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("mock", "remove", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("mock", "remove", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("mock", "clear", "ok")))
	assert.Equal(t, 4, testutil.CollectAndCount(metrics.duration), "one series per operation")
}

func TestStoreMetrics_Instrumented(t *testing.T) {
	metrics := NewStoreMetrics(prometheus.NewRegistry())
	mock := newMockStore()
	registry := metrics.Instrumented(mockRegistry(mock).Register("other", func(ConfigReader) (Store, error) {
		return nil, assert.AnError
	}))

	assert.Equal(t, []string{"file", "other"}, registry.Drivers())

	m, err := NewManager(Config{Registry: registry})
	require.NoError(t, err)
	m.StartSession(nil)
	require.True(t, m.EndSession(context.Background()))
	assert.Equal(t, 1, mock.saves)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("file", "save", "ok")))

	_, err = NewManager(Config{
		Settings: NewSettings(map[string]any{"session": map[string]any{"store": "other"}}),
		Registry: registry,
	})
	assert.ErrorIs(t, err, assert.AnError)
}
