package coordination

import (
	"context"
)

// Version is the coordination service's per-node write counter.
type Version int32

// NodeState is the content of a node at one version.
type NodeState struct {
	Version Version
	Data    []byte
}

// Client is the storage contract the catalog is built on.
type Client interface {
	// Read returns the node, or nil if it does not exist.
	Read(ctx context.Context, path string) (*NodeState, error)
	// Create writes a new node. It fails with ConcurrentModification if the node exists.
	Create(ctx context.Context, path string, data []byte) error
	// WriteIfVersion replaces the node's data only if its version still equals version.
	WriteIfVersion(ctx context.Context, path string, version Version, data []byte) error
}

// Watcher is implemented by clients that can notify on node changes.
type Watcher interface {
	// ReadWatch returns the node (nil if absent) and a channel that is closed
	// once, on the next change to the node, including its creation or deletion.
	ReadWatch(ctx context.Context, path string) (*NodeState, <-chan struct{}, error)
}

// WatchingClient is a Client that can also watch.
type WatchingClient interface {
	Client
	Watcher
}

type result[T any] struct {
	value T
	err   error
}

// await runs op on its own goroutine and returns its result, or ctx.Err()
// once ctx ends. An abandoned op keeps running to completion.
func await[T any](ctx context.Context, op func() (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	done := make(chan result[T], 1)
	go func() {
		v, err := op()
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func closedSignal() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
