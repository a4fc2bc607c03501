// Package kmem provides the allocator used for launch records and argument
// buffers.
//
// Pool is a bounded allocator with byte accounting, so that exhaustion is an
// ordinary error and leaked or doubly freed blocks can be observed. Heap is
// the unbounded Go heap.
package kmem
