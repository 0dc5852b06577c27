package arena

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/timzifer/queuelab/alloc"
)

func TestAllocCopiesPayload(t *testing.T) {
	c := qt.New(t)
	a := New(alloc.NewChecked())

	src := []byte("abc")
	idx, err := a.Alloc(src)
	c.Assert(err, qt.IsNil)

	src[0] = 'z'
	c.Assert(string(a.Value(idx)), qt.Equals, "abc")
	c.Assert(a.Terminated(idx), qt.DeepEquals, []byte("abc\x00"))
	c.Assert(a.Next(idx), qt.Equals, Nil)
	c.Assert(a.Live(), qt.Equals, 1)
}

func TestAllocEmptyPayload(t *testing.T) {
	c := qt.New(t)
	a := New(nil)

	idx, err := a.Alloc([]byte{})
	c.Assert(err, qt.IsNil)
	c.Assert(a.Value(idx), qt.HasLen, 0)
	c.Assert(a.Terminated(idx), qt.DeepEquals, []byte{0})
}

func TestAllocNodeFailure(t *testing.T) {
	c := qt.New(t)
	checked := alloc.NewChecked()
	a := New(checked)

	checked.ScheduleFailure(1)
	idx, err := a.Alloc([]byte("x"))
	c.Assert(idx, qt.Equals, Nil)
	c.Assert(err, qt.ErrorIs, alloc.ErrOutOfMemory)
	c.Assert(err, qt.ErrorMatches, "allocating node: .*")
	c.Assert(checked.Live(), qt.Equals, 0)
	c.Assert(a.Live(), qt.Equals, 0)
}

func TestAllocPayloadFailureReleasesNode(t *testing.T) {
	c := qt.New(t)
	checked := alloc.NewChecked()
	a := New(checked)

	checked.ScheduleFailure(2)
	idx, err := a.Alloc([]byte("x"))
	c.Assert(idx, qt.Equals, Nil)
	c.Assert(err, qt.ErrorIs, alloc.ErrOutOfMemory)
	c.Assert(err, qt.ErrorMatches, "allocating payload: .*")

	stats := checked.Stats()
	c.Assert(stats.Live, qt.Equals, 0)
	c.Assert(stats.Allocs, qt.Equals, 1)
	c.Assert(stats.Frees, qt.Equals, 1)
	c.Assert(stats.BadFrees, qt.Equals, 0)
}

func TestReleaseReusesSlots(t *testing.T) {
	c := qt.New(t)
	checked := alloc.NewChecked()
	a := New(checked)

	first, err := a.Alloc([]byte("one"))
	c.Assert(err, qt.IsNil)
	second, err := a.Alloc([]byte("two"))
	c.Assert(err, qt.IsNil)
	a.SetNext(first, second)
	c.Assert(a.Next(first), qt.Equals, second)

	a.Release(first)
	c.Assert(a.InUse(first), qt.IsFalse)
	c.Assert(a.Value(first), qt.IsNil)
	c.Assert(a.Next(first), qt.Equals, Nil)
	c.Assert(checked.Live(), qt.Equals, 2)

	a.Release(first)
	c.Assert(checked.Stats().BadFrees, qt.Equals, 0)

	third, err := a.Alloc([]byte("three"))
	c.Assert(err, qt.IsNil)
	c.Assert(third, qt.Equals, first)
	c.Assert(string(a.Value(third)), qt.Equals, "three")
	c.Assert(a.Live(), qt.Equals, 2)
}

func TestResetReleasesEverything(t *testing.T) {
	c := qt.New(t)
	checked := alloc.NewChecked()
	a := New(checked)

	for _, s := range []string{"a", "b", "c"} {
		_, err := a.Alloc([]byte(s))
		c.Assert(err, qt.IsNil)
	}
	a.Release(1)
	a.Reset()

	c.Assert(a.Live(), qt.Equals, 0)
	c.Assert(checked.Live(), qt.Equals, 0)
	c.Assert(checked.Stats().BadFrees, qt.Equals, 0)
	c.Assert(a.InUse(0), qt.IsFalse)
}
