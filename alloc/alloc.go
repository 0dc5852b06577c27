package alloc

import (
	"math/rand/v2"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("queuelab.alloc")

// ErrOutOfMemory is returned when an allocator cannot supply a block.
const ErrOutOfMemory = errors.ConstError("out of memory")

// Allocator hands out zeroed byte blocks and takes them back.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free(block []byte)
}

type heap struct{}

// Heap is the plain Go heap. It only fails for invalid sizes.
var Heap Allocator = heap{}

func (heap) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.NotValidf("block size %d", size)
	}
	return make([]byte, size), nil
}

func (heap) Free([]byte) {}

// Stats is a point-in-time view of a Checked allocator.
type Stats struct {
	Allocs    int
	Frees     int
	Failures  int
	BadFrees  int
	Live      int
	LiveBytes int
}

// Checked is an accounting allocator with failure injection. It is not safe
// for concurrent use.
type Checked struct {
	live        map[*byte]int
	liveBytes   int
	failPercent int
	rng         *rand.Rand
	seq         int
	scheduled   map[int]struct{}
	allocs      int
	frees       int
	failures    int
	badFrees    int
}

// CheckedOption configures a Checked allocator.
type CheckedOption func(*Checked)

// WithFailPercent makes roughly percent out of 100 allocations fail.
func WithFailPercent(percent int) CheckedOption {
	return func(c *Checked) {
		c.failPercent = clampPercent(percent)
	}
}

// WithSeed fixes the random source used for failure injection.
func WithSeed(seed uint64) CheckedOption {
	return func(c *Checked) {
		c.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewChecked creates an accounting allocator. Without options it never fails.
func NewChecked(opts ...CheckedOption) *Checked {
	c := &Checked{
		live:      make(map[*byte]int),
		scheduled: make(map[int]struct{}),
		rng:       rand.New(rand.NewPCG(1, 2)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// SetFailPercent changes the random failure probability.
func (c *Checked) SetFailPercent(percent int) error {
	if percent < 0 || percent > 100 {
		return errors.NotValidf("fail percent %d", percent)
	}
	c.failPercent = percent
	return nil
}

// FailPercent reports the configured random failure probability.
func (c *Checked) FailPercent() int {
	return c.failPercent
}

// ScheduleFailure makes the allocation offset calls from now fail, counting
// the next call as 1.
func (c *Checked) ScheduleFailure(offset int) {
	if offset < 1 {
		return
	}
	c.scheduled[c.seq+offset] = struct{}{}
}

// Alloc returns a zeroed block of size bytes, or ErrOutOfMemory when a
// failure is injected.
func (c *Checked) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.NotValidf("block size %d", size)
	}
	c.seq++
	if c.shouldFail() {
		c.failures++
		return nil, errors.Annotatef(ErrOutOfMemory, "allocating %d bytes", size)
	}

	block := make([]byte, size)
	c.live[&block[0]] = size
	c.liveBytes += size
	c.allocs++
	return block, nil
}

// Free releases a block previously returned by Alloc. Freeing nil is a no-op;
// freeing an unknown block is recorded and logged.
func (c *Checked) Free(block []byte) {
	if len(block) == 0 {
		return
	}
	key := &block[0]
	size, ok := c.live[key]
	if !ok {
		c.badFrees++
		logger.Warningf("attempted to free unallocated block of %d bytes", len(block))
		return
	}
	delete(c.live, key)
	c.liveBytes -= size
	c.frees++
	// Scribble over released storage so stale reads show up in tests.
	for i := range block[:size] {
		block[i] = 0x55
	}
}

// Live reports the number of blocks currently allocated.
func (c *Checked) Live() int {
	return len(c.live)
}

// Stats returns the current counters.
func (c *Checked) Stats() Stats {
	return Stats{
		Allocs:    c.allocs,
		Frees:     c.frees,
		Failures:  c.failures,
		BadFrees:  c.badFrees,
		Live:      len(c.live),
		LiveBytes: c.liveBytes,
	}
}

func (c *Checked) shouldFail() bool {
	if _, ok := c.scheduled[c.seq]; ok {
		delete(c.scheduled, c.seq)
		return true
	}
	if c.failPercent == 0 {
		return false
	}
	return c.rng.IntN(100) < c.failPercent
}

func clampPercent(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
