// Package harness drives a queue from text commands and cross-checks every
// result against a reference model.
//
// Commands come one per line, either typed interactively or read from a trace
// file. After each command that touches the queue the harness validates the
// queue's bookkeeping and compares its contents with the model. Mismatches,
// malformed commands and leaked allocations are counted as errors; a trace
// passes when the count stays at zero.
//
// All queue storage is drawn from an alloc.Checked allocator owned by the
// harness, so the "fail" option can inject allocation failures and "free" can
// verify that nothing is left behind.
package harness

import (
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/timzifer/queuelab"
	"github.com/timzifer/queuelab/alloc"
	"github.com/timzifer/queuelab/internal/telemetry"
)

var logger = loggo.GetLogger("queuelab.harness")

const (
	// ErrUnknownCommand is returned for command names the harness does not know.
	ErrUnknownCommand = errors.ConstError("unknown command")
	// ErrUsage is returned when a command gets the wrong arguments.
	ErrUsage = errors.ConstError("invalid arguments")
)

// maxShow bounds the number of elements printed by show.
const maxShow = 50

// Result summarises a harness run.
type Result struct {
	Commands int
	Errors   int
	Leaked   int
	BadFrees int
}

// OK reports whether the run finished without errors or leaks.
func (r Result) OK() bool {
	return r.Errors == 0 && r.Leaked == 0 && r.BadFrees == 0
}

// Harness executes queue commands. It is not safe for concurrent use.
type Harness struct {
	cfg      Config
	out      io.Writer
	alloc    *alloc.Checked
	metrics  *telemetry.OpMetrics
	rng      *rand.Rand
	commands map[string]*command
	ordered  []*command

	q        *queuelab.Queue
	model    []string
	executed int
	failures int
	quit     bool
}

// New creates a harness printing to out. A nil metrics uses the process wide
// default.
func New(cfg Config, out io.Writer, metrics *telemetry.OpMetrics) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if metrics == nil {
		metrics = telemetry.DefaultOpMetrics()
	}
	h := &Harness{
		cfg:     cfg,
		out:     out,
		alloc:   alloc.NewChecked(alloc.WithFailPercent(cfg.FailPercent), alloc.WithSeed(cfg.Seed)),
		metrics: metrics,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
	}
	h.registerCommands()
	return h, nil
}

// Exec runs a single command line. Comments starting with '#' and blank lines
// are ignored. A malformed command is reported, counted as an error and
// returned.
func (h *Harness) Exec(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	h.executed++
	if h.cfg.Verbose >= 2 {
		h.printf("cmd> %s\n", strings.Join(fields, " "))
	}
	logger.Tracef("executing %q", fields)

	cmd, ok := h.commands[fields[0]]
	if !ok {
		err := errors.Annotatef(ErrUnknownCommand, "%q", fields[0])
		h.fail("%v", err)
		return err
	}
	if err := cmd.run(h, fields[1:]); err != nil {
		if errors.Is(err, ErrUsage) {
			err = errors.Annotatef(err, "usage: %s", strings.TrimSpace(cmd.name+" "+cmd.usage))
		}
		h.fail("%v", err)
		return err
	}
	return nil
}

// Run executes commands from src until it is exhausted or quit is executed.
// The queue is released at the end and the result summarises the run.
func (h *Harness) Run(src LineSource) (Result, error) {
	for !h.quit {
		line, err := src.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return h.Finish(), errors.Trace(err)
		}
		_ = h.Exec(line)
	}
	return h.Finish(), nil
}

// Quit reports whether quit has been executed.
func (h *Harness) Quit() bool {
	return h.quit
}

// Finish releases any remaining queue, checks for leaks and returns the result.
func (h *Harness) Finish() Result {
	if h.q != nil {
		h.freeQueue()
	}
	stats := h.alloc.Stats()
	res := Result{
		Commands: h.executed,
		Errors:   h.failures,
		Leaked:   stats.Live,
		BadFrees: stats.BadFrees,
	}
	logger.Debugf("finished after %d commands with %d errors", res.Commands, res.Errors)
	return res
}

func (h *Harness) printf(format string, args ...any) {
	fmt.Fprintf(h.out, format, args...)
}

func (h *Harness) report(format string, args ...any) {
	if h.cfg.Verbose >= 1 {
		h.printf(format+"\n", args...)
	}
}

func (h *Harness) warn(format string, args ...any) {
	if h.cfg.Verbose >= 1 {
		h.printf("WARNING: "+format+"\n", args...)
	}
}

func (h *Harness) fail(format string, args ...any) {
	h.failures++
	msg := fmt.Sprintf(format, args...)
	logger.Debugf("error %d: %s", h.failures, msg)
	h.printf("ERROR: %s\n", msg)
}

// check validates the queue and compares it against the model.
func (h *Harness) check() {
	if h.q == nil {
		return
	}
	if err := h.q.Validate(); err != nil {
		h.fail("queue is corrupted: %v", err)
		return
	}
	if size := h.q.Size(); size != len(h.model) {
		h.fail("computed queue size as %d, but correct value is %d", size, len(h.model))
		return
	}
	got := h.q.Values()
	for i, want := range h.model {
		if string(got[i]) != want {
			h.fail("element %d is %q, expected %q", i, got[i], want)
			return
		}
	}
	if h.cfg.Verbose >= 2 {
		h.show()
	}
}

func (h *Harness) show() {
	if h.q == nil {
		h.printf("q = NULL\n")
		return
	}
	values := h.q.Values()
	parts := make([]string, 0, min(len(values), maxShow)+1)
	for i, v := range values {
		if i == maxShow {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, string(v))
	}
	h.printf("q = [%s]\n", strings.Join(parts, " "))
}

func (h *Harness) newQueue() {
	if h.q != nil {
		h.freeQueue()
	}
	q, err := queuelab.New(queuelab.WithAllocator(h.alloc), queuelab.WithMetrics(h.metrics))
	if err != nil {
		if errors.Is(err, alloc.ErrOutOfMemory) {
			h.warn("cannot allocate queue: %v", err)
			return
		}
		h.fail("cannot create queue: %v", err)
		return
	}
	h.q = q
	h.model = h.model[:0]
	h.check()
}

func (h *Harness) freeQueue() {
	h.q.Destroy()
	h.q = nil
	h.model = h.model[:0]
	if live := h.alloc.Live(); live != 0 {
		h.fail("freed queue, but %d blocks are still allocated", live)
	}
}

// insert performs count insertions of s at the head or tail.
func (h *Harness) insert(atHead bool, s string, count int) {
	name := "tail"
	if atHead {
		name = "head"
	}
	if h.q == nil {
		h.warn("calling insert %s on null queue", name)
	}
	for i := 0; i < count; i++ {
		value := s
		if s == "RAND" {
			value = h.randomString()
		}

		before := h.alloc.Stats().Failures
		var ok bool
		if atHead {
			ok = h.q.InsertHead([]byte(value))
		} else {
			ok = h.q.InsertTail([]byte(value))
		}

		if h.q == nil {
			if ok {
				h.fail("insert %s into null queue reported success", name)
			}
			continue
		}
		if !ok {
			if h.alloc.Stats().Failures > before {
				h.warn("insert %s of %q failed: allocation failure", name, value)
				break
			}
			h.fail("insert %s of %q failed", name, value)
			break
		}
		if atHead {
			h.model = slices.Insert(h.model, 0, value)
		} else {
			h.model = append(h.model, value)
		}
	}
	h.check()
}

// remove removes the head. With useBuffer the string is copied out and
// compared against expected when one is given.
func (h *Harness) remove(useBuffer bool, expected *string) {
	var buf []byte
	if useBuffer {
		buf = make([]byte, h.cfg.StringLength)
		for i := range buf {
			buf[i] = 'X'
		}
	}

	if h.q == nil {
		h.warn("calling remove head on null queue")
		if h.q.RemoveHead(buf) {
			h.fail("removal from null queue reported success")
		}
		return
	}
	if len(h.model) == 0 {
		h.warn("calling remove head on empty queue")
		if h.q.RemoveHead(buf) {
			h.fail("removal from empty queue reported success")
		}
		h.check()
		return
	}

	if !h.q.RemoveHead(buf) {
		h.fail("removal from non-empty queue failed")
		h.check()
		return
	}
	want := h.model[0]
	h.model = h.model[1:]

	if useBuffer {
		removed := terminated(buf)
		if buf[len(buf)-1] != 0 {
			h.fail("removed value is not terminated")
		}
		truncated := want
		if len(truncated) > len(buf)-1 {
			truncated = truncated[:len(buf)-1]
		}
		switch {
		case expected != nil && removed != *expected:
			h.fail("removed value %q does not match expected value %q", removed, *expected)
		case removed != truncated:
			h.fail("removed value %q, queue held %q", removed, truncated)
		default:
			h.report("Removed %s from queue", removed)
		}
	}
	h.check()
}

func (h *Harness) randomString() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	n := 5 + h.rng.IntN(6)
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[h.rng.IntN(len(letters))]
	}
	return string(b)
}

func terminated(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}
