package mirror

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/coordination"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const path = "/package/repositories"

func start(t *testing.T, m *Mirror) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func cachedData(m *Mirror) string {
	state := m.ReadCached()
	if state == nil {
		return ""
	}
	return string(state.Data)
}

func TestMirrorFollowsNode(t *testing.T) {
	ctx := context.Background()
	store := coordination.NewMemory()
	m := New(store, path, Config{}, nil, nil)

	assert.Nil(t, m.ReadCached())

	start(t, m)
	select {
	case <-m.Ready():
	case <-time.After(time.Second):
		t.Fatal("mirror never became ready")
	}
	assert.Nil(t, m.ReadCached(), "absent node")

	require.NoError(t, store.Create(ctx, path, []byte("v0")))
	require.Eventually(t, func() bool { return cachedData(m) == "v0" }, time.Second, 5*time.Millisecond)

	require.NoError(t, store.WriteIfVersion(ctx, path, 0, []byte("v1")))
	require.Eventually(t, func() bool {
		state := m.ReadCached()
		return state != nil && state.Version == 1 && string(state.Data) == "v1"
	}, time.Second, 5*time.Millisecond)

	store.Delete(path)
	require.Eventually(t, func() bool { return m.ReadCached() == nil }, time.Second, 5*time.Millisecond)
}

func TestMirrorPrimesFromExistingNode(t *testing.T) {
	store := coordination.NewMemory()
	require.NoError(t, store.Create(context.Background(), path, []byte("seed")))

	m := New(store, path, Config{}, nil, nil)
	start(t, m)

	require.Eventually(t, func() bool { return cachedData(m) == "seed" }, time.Second, 5*time.Millisecond)
}

type flakyWatcher struct {
	coordination.Watcher
	failures int32
	calls    atomic.Int32
}

func (f *flakyWatcher) ReadWatch(ctx context.Context, p string) (*coordination.NodeState, <-chan struct{}, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, nil, errors.New("connection loss")
	}
	return f.Watcher.ReadWatch(ctx, p)
}

func TestMirrorRetriesAfterWatchErrors(t *testing.T) {
	store := coordination.NewMemory()
	require.NoError(t, store.Create(context.Background(), path, []byte("v0")))

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetricsWithRegistry(reg, reg)
	watcher := &flakyWatcher{Watcher: store, failures: 2}
	m := New(watcher, path, Config{RetryInterval: 100 * time.Millisecond}, nil, metrics)
	start(t, m)

	require.Eventually(t, func() bool { return cachedData(m) == "v0" }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MirrorRefreshes.WithLabelValues("error")))
}

func TestReadCachedReturnsCopy(t *testing.T) {
	store := coordination.NewMemory()
	require.NoError(t, store.Create(context.Background(), path, []byte("v0")))
	m := New(store, path, Config{}, nil, nil)
	start(t, m)

	require.Eventually(t, func() bool { return m.ReadCached() != nil }, time.Second, 5*time.Millisecond)
	m.ReadCached().Version = 99
	assert.Equal(t, coordination.Version(0), m.ReadCached().Version)
}

func TestRunStopsOnCancel(t *testing.T) {
	m := New(coordination.NewMemory(), path, Config{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	<-m.Ready()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
