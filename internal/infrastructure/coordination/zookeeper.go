package coordination

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
	"github.com/go-zookeeper/zk"
	"go.uber.org/zap"
)

const (
	opRead   = "read"
	opCreate = "create"
	opWrite  = "write"
	opWatch  = "watch"
)

// zkConn is the subset of *zk.Conn the adapter uses.
type zkConn interface {
	Get(path string) ([]byte, *zk.Stat, error)
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Close()
}

// ZooKeeperConfig configures the ZooKeeper backend.
type ZooKeeperConfig struct {
	Servers        []string
	SessionTimeout time.Duration
	Breaker        resilience.Settings
}

// Options carries the optional collaborators shared by both backends.
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	Tracer  *tracing.Tracer
	// ZKLogger receives the ZooKeeper client's own log lines.
	ZKLogger zk.Logger
}

// ZooKeeper is a Client backed by a ZooKeeper ensemble.
type ZooKeeper struct {
	conn    zkConn
	acl     []zk.ACL
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
}

// DialZooKeeper connects to the ensemble. The session is established in the
// background; calls made before it is up wait on the client's own queue.
func DialZooKeeper(cfg ZooKeeperConfig, opts Options) (*ZooKeeper, error) {
	zkLogger := opts.ZKLogger
	if zkLogger == nil {
		zkLogger = zk.DefaultLogger
	}

	conn, events, err := zk.Connect(cfg.Servers, cfg.SessionTimeout, zk.WithLogger(zkLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper %v: %w", cfg.Servers, err)
	}

	z := newZooKeeper(conn, cfg.Breaker, opts)
	go z.logSession(events)
	return z, nil
}

func newZooKeeper(conn zkConn, settings resilience.Settings, opts Options) *ZooKeeper {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings.Expected = func(err error) bool {
		return apierr.IsKind(err, apierr.KindConcurrentModification)
	}

	return &ZooKeeper{
		conn:    conn,
		acl:     zk.WorldACL(zk.PermAll),
		breaker: resilience.New("zookeeper", settings, logger),
		logger:  logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}
}

// Close ends the session. Pending watches are released.
func (z *ZooKeeper) Close() {
	z.conn.Close()
}

// Read implements Client.
func (z *ZooKeeper) Read(ctx context.Context, path string) (*NodeState, error) {
	return call(ctx, z, opRead, path, func() (*NodeState, error) {
		data, stat, err := z.conn.Get(path)
		if errors.Is(err, zk.ErrNoNode) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &NodeState{Version: Version(stat.Version), Data: data}, nil
	})
}

// Create implements Client. Missing parent nodes are created empty.
func (z *ZooKeeper) Create(ctx context.Context, path string, data []byte) error {
	_, err := call(ctx, z, opCreate, path, func() (struct{}, error) {
		if err := z.ensureParents(path); err != nil {
			return struct{}{}, err
		}
		_, err := z.conn.Create(path, data, 0, z.acl)
		if errors.Is(err, zk.ErrNodeExists) {
			return struct{}{}, apierr.ConcurrentModification(opCreate, path)
		}
		return struct{}{}, err
	})
	return err
}

// WriteIfVersion implements Client.
func (z *ZooKeeper) WriteIfVersion(ctx context.Context, path string, version Version, data []byte) error {
	_, err := call(ctx, z, opWrite, path, func() (struct{}, error) {
		_, err := z.conn.Set(path, data, int32(version))
		if errors.Is(err, zk.ErrBadVersion) {
			return struct{}{}, apierr.ConcurrentModification(opWrite, path)
		}
		return struct{}{}, err
	})
	return err
}

type watched struct {
	state  *NodeState
	events <-chan zk.Event
	raced  bool
}

// ReadWatch implements Watcher. An absent node is watched for creation.
func (z *ZooKeeper) ReadWatch(ctx context.Context, path string) (*NodeState, <-chan struct{}, error) {
	w, err := call(ctx, z, opWatch, path, func() (watched, error) {
		data, stat, events, err := z.conn.GetW(path)
		if err == nil {
			return watched{state: &NodeState{Version: Version(stat.Version), Data: data}, events: events}, nil
		}
		if !errors.Is(err, zk.ErrNoNode) {
			return watched{}, err
		}

		exists, _, events, err := z.conn.ExistsW(path)
		if err != nil {
			return watched{}, err
		}
		// Created between the two calls; have the caller read again.
		return watched{events: events, raced: exists}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if w.raced {
		return nil, closedSignal(), nil
	}
	return w.state, signal(w.events), nil
}

func (z *ZooKeeper) ensureParents(path string) error {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		parent := "/" + strings.Join(parts[:i], "/")
		if _, err := z.conn.Create(parent, nil, 0, z.acl); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("failed to create parent %s: %w", parent, err)
		}
	}
	return nil
}

func (z *ZooKeeper) logSession(events <-chan zk.Event) {
	for ev := range events {
		switch ev.State {
		case zk.StateExpired, zk.StateDisconnected:
			z.logger.Warn("zookeeper session state", zap.String("state", ev.State.String()))
		default:
			z.logger.Debug("zookeeper session state", zap.String("state", ev.State.String()))
		}
	}
}

// call runs fn through the breaker under ctx, with a span and a metric.
func call[T any](ctx context.Context, z *ZooKeeper, op, path string, fn func() (T, error)) (T, error) {
	span, ctx := z.tracer.StartSpan(ctx, "coordination."+op)
	span.SetTag("path", path)
	start := time.Now()

	v, err := await(ctx, func() (T, error) {
		return resilience.Do(z.breaker, fn)
	})

	outcome := "ok"
	if err != nil {
		outcome, err = z.classify(op, path, err)
		span.SetError(err)
	}
	span.SetTag("outcome", outcome)
	span.Finish()
	z.tracer.Submit(span)
	z.metrics.RecordCoordinationCall(op, outcome, time.Since(start))

	return v, err
}

func (z *ZooKeeper) classify(op, path string, err error) (string, error) {
	if apierr.IsKind(err, apierr.KindConcurrentModification) {
		z.logger.Warn("coordination write conflict", zap.String("op", op), zap.String("path", path))
		return "conflict", err
	}

	fault := apierr.CoordinationFault(op, path, err)
	outcome := "fault"
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		outcome = "abandoned"
		if op == opCreate || op == opWrite {
			fault = fault.With("outcome", "unknown")
		}
	case errors.Is(err, resilience.ErrCircuitOpen):
		outcome = "rejected"
	}

	z.logger.Error("coordination call failed",
		zap.String("op", op),
		zap.String("path", path),
		zap.String("outcome", outcome),
		zap.Error(err),
	)
	return outcome, fault
}

// signal turns a one-shot ZooKeeper watch into a closed-on-change channel.
func signal(events <-chan zk.Event) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		<-events
		close(ch)
	}()
	return ch
}
