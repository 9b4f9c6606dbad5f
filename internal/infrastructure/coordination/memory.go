package coordination

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
)

type memNode struct {
	version Version
	data    []byte
}

// Memory is an in-process Client with the same compare-and-swap and watch
// semantics as ZooKeeper. Nodes start at version 0.
type Memory struct {
	mu      sync.Mutex
	nodes   map[string]*memNode
	watches map[string][]chan struct{}
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		nodes:   make(map[string]*memNode),
		watches: make(map[string][]chan struct{}),
	}
}

// Read implements Client.
func (m *Memory) Read(ctx context.Context, path string) (*NodeState, error) {
	if err := ctx.Err(); err != nil {
		return nil, apierr.CoordinationFault(opRead, path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(path), nil
}

// Create implements Client.
func (m *Memory) Create(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return apierr.CoordinationFault(opCreate, path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[path]; ok {
		return apierr.ConcurrentModification(opCreate, path)
	}
	m.nodes[path] = &memNode{version: 0, data: clone(data)}
	m.notify(path)
	return nil
}

// WriteIfVersion implements Client.
func (m *Memory) WriteIfVersion(ctx context.Context, path string, version Version, data []byte) error {
	if err := ctx.Err(); err != nil {
		return apierr.CoordinationFault(opWrite, path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[path]
	if !ok {
		return apierr.CoordinationFault(opWrite, path, fmt.Errorf("node does not exist"))
	}
	if node.version != version {
		return apierr.ConcurrentModification(opWrite, path)
	}
	node.version++
	node.data = clone(data)
	m.notify(path)
	return nil
}

// ReadWatch implements Watcher.
func (m *Memory) ReadWatch(ctx context.Context, path string) (*NodeState, <-chan struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, apierr.CoordinationFault(opWatch, path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan struct{})
	m.watches[path] = append(m.watches[path], ch)
	return m.snapshot(path), ch, nil
}

// Delete removes a node. The catalog never deletes; this exists so tests can
// exercise the mirror's handling of a vanished node.
func (m *Memory) Delete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[path]; ok {
		delete(m.nodes, path)
		m.notify(path)
	}
}

func (m *Memory) snapshot(path string) *NodeState {
	node, ok := m.nodes[path]
	if !ok {
		return nil
	}
	return &NodeState{Version: node.version, Data: clone(node.data)}
}

// notify fires and clears every watch on path. Callers hold mu.
func (m *Memory) notify(path string) {
	for _, ch := range m.watches[path] {
		close(ch)
	}
	delete(m.watches, path)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
