// Package queuelab implements a singly linked queue of byte strings that
// supports insertion at both ends, removal from the head and in-place
// reversal.
//
// Every element is an owned, zero terminated copy of the bytes handed to the
// queue, so callers may reuse their buffers right after an insertion. All
// storage comes from an alloc.Allocator; when it runs out the operation
// reports failure and leaves the queue exactly as it was.
//
// The methods accept a nil *Queue and treat it, like a destroyed queue, as
// absent: insertions and removals report false, Size reports 0 and Reverse
// does nothing. A Queue is meant for a single owner and is not safe for
// concurrent use.
package queuelab

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/timzifer/queuelab/alloc"
	"github.com/timzifer/queuelab/internal/arena"
	"github.com/timzifer/queuelab/internal/queue"
	"github.com/timzifer/queuelab/internal/telemetry"
)

var logger = loggo.GetLogger("queuelab")

// headerSize is the number of bytes charged to the allocator for the queue
// itself.
const headerSize = 24

// Queue is a double-ended, singly linked queue of byte strings.
type Queue struct {
	header  []byte
	alloc   alloc.Allocator
	nodes   *arena.Arena
	chain   *queue.Chain
	logger  loggo.Logger
	metrics *telemetry.OpMetrics
}

// New creates an empty queue. If the allocator cannot provide the queue header
// New returns an error satisfying errors.Is(err, alloc.ErrOutOfMemory).
func New(opts ...Option) (*Queue, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	finish := o.metrics.Trace(telemetry.OpCreate)
	header, err := o.alloc.Alloc(headerSize)
	if err != nil {
		finish(true)
		o.logger.Debugf("cannot create queue: %v", err)
		return nil, errors.Annotate(err, "creating queue")
	}

	nodes := arena.New(o.alloc)
	chain, err := queue.NewChain(nodes)
	if err != nil {
		o.alloc.Free(header)
		finish(true)
		return nil, errors.Annotate(err, "creating queue")
	}
	finish(false)

	return &Queue{
		header:  header,
		alloc:   o.alloc,
		nodes:   nodes,
		chain:   chain,
		logger:  o.logger,
		metrics: o.metrics,
	}, nil
}

// Destroy releases every element and then the queue itself. The queue must not
// be used afterwards; if it is, it behaves like a nil queue.
func (q *Queue) Destroy() {
	if !q.usable() {
		return
	}
	finish := q.metrics.Trace(telemetry.OpDestroy)
	released := q.chain.Len()

	q.chain.Clear()
	q.alloc.Free(q.header)
	q.header = nil
	q.chain = nil
	q.nodes = nil

	finish(false)
	q.logger.Tracef("destroyed queue holding %d elements", released)
}

// InsertHead stores a copy of s as the new first element. It reports false if
// the queue is absent, s is nil, or storage cannot be allocated.
func (q *Queue) InsertHead(s []byte) bool {
	return q.insert(telemetry.OpInsertHead, s, func(c *queue.Chain) error {
		return c.PushFront(s)
	})
}

// InsertTail stores a copy of s as the new last element. It reports false if
// the queue is absent, s is nil, or storage cannot be allocated.
func (q *Queue) InsertTail(s []byte) bool {
	return q.insert(telemetry.OpInsertTail, s, func(c *queue.Chain) error {
		return c.PushBack(s)
	})
}

func (q *Queue) insert(op telemetry.Op, s []byte, push func(*queue.Chain) error) bool {
	if !q.usable() {
		logger.Debugf("%v on absent queue", op)
		return false
	}
	finish := q.metrics.Trace(op)
	if s == nil {
		finish(true)
		q.logger.Debugf("%v rejected: nil payload", op)
		return false
	}
	if err := push(q.chain); err != nil {
		finish(true)
		q.logger.Debugf("%v failed: %v", op, err)
		return false
	}
	finish(false)
	return true
}

// RemoveHead unlinks the first element and releases it. It reports false if the
// queue is absent or empty.
//
// If buf is not empty the removed string is copied into it first: at most
// len(buf)-1 bytes are copied, the rest of buf is zero filled and the last byte
// of buf is always set to zero. Longer strings are truncated silently.
func (q *Queue) RemoveHead(buf []byte) bool {
	if !q.usable() {
		logger.Debugf("%v on absent queue", telemetry.OpRemoveHead)
		return false
	}
	finish := q.metrics.Trace(telemetry.OpRemoveHead)
	if err := q.chain.PopFront(buf); err != nil {
		finish(true)
		q.logger.Debugf("%v failed: %v", telemetry.OpRemoveHead, err)
		return false
	}
	finish(false)
	return true
}

// Peek returns a copy of the first element without removing it.
func (q *Queue) Peek() ([]byte, bool) {
	if !q.usable() {
		return nil, false
	}
	return q.chain.Front()
}

// Size returns the number of elements, or 0 for an absent queue.
func (q *Queue) Size() int {
	if !q.usable() {
		return 0
	}
	return q.chain.Len()
}

// Reverse reverses the order of the elements in place. Absent and empty queues
// are left alone.
func (q *Queue) Reverse() {
	if !q.usable() || q.chain.Len() == 0 {
		return
	}
	finish := q.metrics.Trace(telemetry.OpReverse)
	q.chain.Reverse()
	finish(false)
}

// Values returns copies of the elements from head to tail.
func (q *Queue) Values() [][]byte {
	if !q.usable() {
		return nil
	}
	return q.chain.Values()
}

// Live returns the number of element nodes currently allocated.
func (q *Queue) Live() int {
	if !q.usable() {
		return 0
	}
	return q.nodes.Live()
}

// Validate checks the head, tail and count bookkeeping by walking the queue.
// An absent queue is valid.
func (q *Queue) Validate() error {
	if !q.usable() {
		return nil
	}
	return errors.Trace(q.chain.Validate())
}

func (q *Queue) usable() bool {
	return q != nil && q.chain != nil
}
