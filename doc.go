// Package ouro provides a managed heap for object graphs that form
// reference cycles.
//
// Objects are freed eagerly by reference counting the moment their last
// strong handle is dropped; cycles, which reference counting alone can
// never reclaim, are collected by an explicit, synchronous Collect pass
// using trial deletion. There is no background work and no automatic
// triggering: the program decides when a pass runs.
//
// # Quick Start
//
//	type Node struct {
//	    Next ouro.Cell[*Node]
//	}
//
//	func (n *Node) Trace(t *ouro.Tracer) {
//	    n.Next.Trace(t)
//	}
//
//	heap, _ := ouro.New()
//	defer heap.Close()
//
//	a, _ := ouro.Alloc(heap, &Node{})
//	b, _ := ouro.Alloc(heap, &Node{})
//	a.Value().Next.Set(b.Clone())
//	b.Value().Next.Set(a.Clone()) // cycle: a -> b -> a
//
//	a.Drop()
//	b.Drop()                      // cycle is now unreachable but still allocated
//	report := heap.Collect()      // reclaims it: report.Dropped == 2
//
// # Ownership
//
// Handles are explicit: Clone creates a reference, Drop ends one, and every
// handle must be dropped exactly once. Plain assignment copies the token
// without creating a reference. Cell stores an optional handle inside a
// managed value and drops the old reference on re-assignment.
//
// # Tracing
//
// Every managed value implements Traceable by calling Trace on each
// embedded handle; TraceSlice and TraceMap cover containers. The walk never
// recurses through a handle, so cyclic graphs need no care in user code.
// Trace must not mutate the graph or allocate.
//
// # Weak References
//
// Downgrade yields a weak handle that never keeps its object alive.
// Upgrade is the only failable handle operation: it reports false exactly
// when the object has been finalized. Back edges held weakly (child to
// parent, cache entries, observer lists) break cycles so that plain
// reference counting reclaims the structure without a pass.
//
// # Finalizers
//
// A managed value may implement Finalizer; its hook runs exactly once,
// before storage is freed, whether the object dies by reference counting,
// by a pass, or at heap close. Hooks may allocate and manipulate handles;
// consequences that cannot be applied mid-pass are deferred to the end of
// the pass.
//
// # Concurrency Model
//
// A Heap and all handles derived from it are single-owner: confine them to
// one goroutine or serialize access externally. Collect blocks its caller
// and completes before returning. The resource controller shared between
// heaps is safe for concurrent use.
//
// # Diagnostics
//
// Logging and metrics are explicit dependencies configured with WithLogger
// and WithMetricsCollector; nothing is read from the environment. Snapshot
// captures the live graph for inspection, and the dump package serializes
// snapshots for offline analysis.
package ouro
