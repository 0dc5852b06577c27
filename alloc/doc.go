// Package alloc provides the fallible memory source used by the queue.
//
// Every node slot and every payload copy is obtained through an Allocator, so
// callers have to handle allocation failure at each call site. Heap never
// fails. Checked keeps track of every live block, reports frees of unknown
// blocks and can inject failures either at random with a configured
// probability or at scheduled positions, which is what the harness and the
// tests use to drive the failure paths of the queue.
package alloc
