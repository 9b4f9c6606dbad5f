// Package mirror keeps a watch-refreshed local copy of one coordination node.
//
// Reads never touch the network. The copy lags the service by the watch
// delivery latency, so it must never supply the version for a write.
package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/coordination"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/monitoring"
	"github.com/cenkalti/backoff/v4"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const minRetry = 100 * time.Millisecond

// Config tunes the refresh loop.
type Config struct {
	// RetryInterval caps the delay between attempts after a failed watch.
	RetryInterval time.Duration
}

// Mirror holds the latest observed state of a node. Run is its only writer.
type Mirror struct {
	watcher coordination.Watcher
	path    string
	cfg     Config
	cache   *gocache.Cache
	logger  *zap.Logger
	metrics *monitoring.Metrics

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a mirror of path. It is empty until Run completes its first read.
func New(watcher coordination.Watcher, path string, cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryInterval < minRetry {
		cfg.RetryInterval = minRetry
	}
	return &Mirror{
		watcher: watcher,
		path:    path,
		cfg:     cfg,
		cache:   gocache.New(gocache.NoExpiration, 0),
		logger:  logger,
		metrics: metrics,
		ready:   make(chan struct{}),
	}
}

// Ready is closed after the first successful refresh.
func (m *Mirror) Ready() <-chan struct{} {
	return m.ready
}

// ReadCached returns the last observed state, or nil if the node was absent
// or has not been observed yet.
func (m *Mirror) ReadCached() *coordination.NodeState {
	v, ok := m.cache.Get(m.path)
	m.metrics.RecordMirrorLookup(ok)
	if !ok {
		return nil
	}
	state := v.(coordination.NodeState)
	state.Data = append([]byte(nil), state.Data...)
	return &state
}

// Run refreshes the mirror on every change until ctx ends.
func (m *Mirror) Run(ctx context.Context) {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = minRetry
	retry.MaxInterval = m.cfg.RetryInterval
	retry.MaxElapsedTime = 0

	m.logger.Info("mirror started", zap.String("path", m.path))
	defer m.logger.Info("mirror stopped", zap.String("path", m.path))

	for {
		state, changed, err := m.watcher.ReadWatch(ctx, m.path)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := retry.NextBackOff()
			m.metrics.RecordMirrorRefresh("error")
			m.logger.Warn("mirror watch failed",
				zap.String("path", m.path),
				zap.Duration("retry_in", delay),
				zap.Error(err),
			)
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		retry.Reset()
		m.store(state)

		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}

func (m *Mirror) store(state *coordination.NodeState) {
	if state == nil {
		m.cache.Delete(m.path)
		m.metrics.RecordMirrorRefresh("absent")
		m.logger.Debug("mirror cleared", zap.String("path", m.path))
	} else {
		m.cache.Set(m.path, *state, gocache.NoExpiration)
		m.metrics.RecordMirrorRefresh("ok")
		m.logger.Debug("mirror refreshed",
			zap.String("path", m.path),
			zap.Int32("version", int32(state.Version)),
		)
	}
	m.readyOnce.Do(func() { close(m.ready) })
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
