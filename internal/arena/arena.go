// Package arena stores queue nodes in index-addressed slots.
//
// A node is a slot holding an owned, zero terminated copy of its payload and
// the index of the following node. Links are plain indices into the arena, so
// a node can never be reachable from two owners and releasing a slot cannot
// leave a dangling pointer behind. Released slots are threaded onto a free list
// and reused by later allocations.
package arena

import (
	"github.com/juju/errors"

	"github.com/timzifer/queuelab/alloc"
)

// Index addresses a slot. Nil marks the absence of a node.
type Index int32

// Nil is the link value of the last node and of an empty queue's head and tail.
const Nil Index = -1

// NodeSize is the number of bytes charged to the allocator for each node.
const NodeSize = 16

type slot struct {
	header []byte
	value  []byte
	next   Index
}

// Arena owns a set of node slots. It is not safe for concurrent use.
type Arena struct {
	alloc alloc.Allocator
	slots []slot
	free  Index
	live  int
}

// New creates an empty arena drawing memory from a.
func New(a alloc.Allocator) *Arena {
	if a == nil {
		a = alloc.Heap
	}
	return &Arena{alloc: a, free: Nil}
}

// Alloc creates a node holding a copy of payload with no successor. The node
// storage is allocated first; if the payload copy cannot be allocated the node
// storage is released again before the error is returned.
func (a *Arena) Alloc(payload []byte) (Index, error) {
	header, err := a.alloc.Alloc(NodeSize)
	if err != nil {
		return Nil, errors.Annotate(err, "allocating node")
	}
	value, err := a.alloc.Alloc(len(payload) + 1)
	if err != nil {
		a.alloc.Free(header)
		return Nil, errors.Annotate(err, "allocating payload")
	}
	copy(value, payload)
	value[len(payload)] = 0

	idx := a.free
	if idx != Nil {
		a.free = a.slots[idx].next
	} else {
		idx = Index(len(a.slots))
		a.slots = append(a.slots, slot{})
	}
	a.slots[idx] = slot{header: header, value: value, next: Nil}
	a.live++
	return idx, nil
}

// Release frees the node at i and its payload. Releasing Nil or a slot that
// is not in use is a no-op.
func (a *Arena) Release(i Index) {
	if !a.inUse(i) {
		return
	}
	s := &a.slots[i]
	a.alloc.Free(s.value)
	a.alloc.Free(s.header)
	*s = slot{next: a.free}
	a.free = i
	a.live--
}

// Next returns the successor of i.
func (a *Arena) Next(i Index) Index {
	if !a.inUse(i) {
		return Nil
	}
	return a.slots[i].next
}

// SetNext links i to next.
func (a *Arena) SetNext(i, next Index) {
	if !a.inUse(i) {
		return
	}
	a.slots[i].next = next
}

// Value returns the payload stored at i without its terminator. The returned
// slice aliases arena storage and is only valid until i is released.
func (a *Arena) Value(i Index) []byte {
	if !a.inUse(i) {
		return nil
	}
	v := a.slots[i].value
	return v[:len(v)-1]
}

// Terminated returns the payload stored at i including its terminator.
func (a *Arena) Terminated(i Index) []byte {
	if !a.inUse(i) {
		return nil
	}
	return a.slots[i].value
}

// Live reports the number of slots in use.
func (a *Arena) Live() int {
	return a.live
}

// InUse reports whether i addresses a live node.
func (a *Arena) InUse(i Index) bool {
	return a.inUse(i)
}

// Reset releases every live node and drops the slot table.
func (a *Arena) Reset() {
	for i := range a.slots {
		a.Release(Index(i))
	}
	a.slots = nil
	a.free = Nil
}

func (a *Arena) inUse(i Index) bool {
	return i >= 0 && int(i) < len(a.slots) && a.slots[i].header != nil
}
