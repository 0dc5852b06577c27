package queue

import (
	"github.com/juju/errors"

	"github.com/timzifer/queuelab/internal/arena"
)

// ErrEmpty is returned when removing from a chain without nodes.
const ErrEmpty = errors.ConstError("queue is empty")

// Chain is a singly linked list of byte strings stored in an arena.
type Chain struct {
	nodes *arena.Arena
	head  arena.Index
	tail  arena.Index
	len   int
}

type chainOptions struct {
	initial [][]byte
}

// ChainOption configures a new chain.
type ChainOption func(*chainOptions)

// WithInitial seeds the chain with values in head to tail order.
func WithInitial(values ...[]byte) ChainOption {
	return func(opts *chainOptions) {
		opts.initial = append(opts.initial[:0], values...)
	}
}

// NewChain creates a chain whose nodes live in nodes. If seeding an initial
// value fails, everything allocated so far is released.
func NewChain(nodes *arena.Arena, options ...ChainOption) (*Chain, error) {
	c := &Chain{
		nodes: nodes,
		head:  arena.Nil,
		tail:  arena.Nil,
	}

	var opts chainOptions
	for _, opt := range options {
		opt(&opts)
	}
	for _, v := range opts.initial {
		if err := c.PushBack(v); err != nil {
			c.Clear()
			return nil, errors.Annotate(err, "seeding chain")
		}
	}
	return c, nil
}

// PushFront links a copy of payload in as the new head.
func (c *Chain) PushFront(payload []byte) error {
	n, err := c.nodes.Alloc(payload)
	if err != nil {
		return errors.Trace(err)
	}

	if c.len == 0 {
		c.tail = n
	} else {
		c.nodes.SetNext(n, c.head)
	}
	c.head = n
	c.len++
	return nil
}

// PushBack links a copy of payload in after the tail.
func (c *Chain) PushBack(payload []byte) error {
	n, err := c.nodes.Alloc(payload)
	if err != nil {
		return errors.Trace(err)
	}

	if c.len == 0 {
		c.head = n
	} else {
		c.nodes.SetNext(c.tail, n)
	}
	c.tail = n
	c.len++
	return nil
}

// PopFront unlinks and releases the head node. The payload is copied into buf
// first, see CopyTerminated.
func (c *Chain) PopFront(buf []byte) error {
	if c.len == 0 {
		return ErrEmpty
	}

	current := c.head
	CopyTerminated(buf, c.nodes.Terminated(current))

	next := c.nodes.Next(current)
	c.head = next
	if next == arena.Nil {
		c.tail = arena.Nil
	}
	c.len--

	c.nodes.Release(current)
	return nil
}

// Front returns a copy of the head payload.
func (c *Chain) Front() ([]byte, bool) {
	if c.len == 0 {
		return nil, false
	}
	return append([]byte{}, c.nodes.Value(c.head)...), true
}

// Reverse flips every link in place. Only the links change, payload storage
// stays where it is.
func (c *Chain) Reverse() {
	if c.len < 2 {
		return
	}

	prev := arena.Nil
	current := c.head
	for current != arena.Nil {
		next := c.nodes.Next(current)
		c.nodes.SetNext(current, prev)
		prev = current
		current = next
	}
	c.head, c.tail = c.tail, c.head
}

// Len returns the maintained node count.
func (c *Chain) Len() int {
	return c.len
}

// Values returns copies of all payloads in head to tail order.
func (c *Chain) Values() [][]byte {
	if c.len == 0 {
		return nil
	}

	result := make([][]byte, 0, c.len)
	for n, hops := c.head, 0; n != arena.Nil && hops < c.len; n, hops = c.nodes.Next(n), hops+1 {
		result = append(result, append([]byte{}, c.nodes.Value(n)...))
	}
	return result
}

// Clear releases every node, head first.
func (c *Chain) Clear() {
	for n := c.head; n != arena.Nil; {
		next := c.nodes.Next(n)
		c.nodes.Release(n)
		n = next
	}
	c.nodes.Reset()
	c.head = arena.Nil
	c.tail = arena.Nil
	c.len = 0
}

// Validate walks the chain and checks the head, tail and count bookkeeping.
func (c *Chain) Validate() error {
	if c.len < 0 {
		return errors.NotValidf("length %d", c.len)
	}
	if c.len == 0 {
		if c.head != arena.Nil || c.tail != arena.Nil {
			return errors.NotValidf("empty chain with head %d and tail %d", c.head, c.tail)
		}
		return c.checkLive()
	}
	if c.head == arena.Nil || c.tail == arena.Nil {
		return errors.NotValidf("chain of length %d with head %d and tail %d", c.len, c.head, c.tail)
	}

	current := c.head
	for hops := 1; hops < c.len; hops++ {
		current = c.nodes.Next(current)
		if current == arena.Nil {
			return errors.NotValidf("chain ending after %d of %d nodes", hops, c.len)
		}
	}
	if current != c.tail {
		return errors.NotValidf("node %d reached after %d nodes instead of tail %d", current, c.len, c.tail)
	}
	if next := c.nodes.Next(c.tail); next != arena.Nil {
		return errors.NotValidf("tail %d linking to %d", c.tail, next)
	}
	return c.checkLive()
}

func (c *Chain) checkLive() error {
	if live := c.nodes.Live(); live != c.len {
		return errors.NotValidf("%d live nodes for chain of length %d", live, c.len)
	}
	return nil
}

// CopyTerminated copies src into dst the way strncpy does and then terminates
// dst: at most len(dst)-1 bytes are copied, stopping at the first zero byte of
// src, the remainder of that range is zero filled and dst[len(dst)-1] is set to
// zero. An empty dst is left alone.
func CopyTerminated(dst, src []byte) {
	if len(dst) == 0 {
		return
	}

	limit := len(dst) - 1
	n := 0
	for n < limit && n < len(src) && src[n] != 0 {
		dst[n] = src[n]
		n++
	}
	clear(dst[n:limit])
	dst[limit] = 0
}
