/*
Package coordination is the boundary to the coordination service that stores
the repository catalog.

Nodes hold opaque bytes and a version counter that increases on every write.
Writers use compare-and-swap: Create fails if the node exists and
WriteIfVersion fails if the version moved. Both report
apierr.KindConcurrentModification, which callers surface instead of retrying.

Two backends implement Client:

  - ZooKeeper talks to a real ensemble through github.com/go-zookeeper/zk.
  - Memory keeps nodes in process with the same linearizable semantics, for
    tests and single-node development.

Every call takes a context. The blocking client call runs on its own
goroutine and the caller is released when the context ends. A write abandoned
that way reports a coordination fault with outcome "unknown", since the
service may still apply it.
*/
package coordination
