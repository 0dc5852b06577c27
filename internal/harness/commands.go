package harness

import (
	"slices"
	"sort"
	"strconv"

	"github.com/juju/errors"

	"github.com/timzifer/queuelab/internal/telemetry"
)

type command struct {
	name  string
	alias string
	usage string
	help  string
	run   func(h *Harness, args []string) error
}

func (h *Harness) registerCommands() {
	h.commands = make(map[string]*command)
	for _, cmd := range []*command{
		{name: "new", alias: "n", help: "Create new queue", run: cmdNew},
		{name: "free", alias: "f", help: "Delete queue", run: cmdFree},
		{name: "ih", alias: "h", usage: "str [n]", help: "Insert string str at head of queue n times (default 1); RAND inserts a random string", run: cmdInsertHead},
		{name: "it", alias: "t", usage: "str [n]", help: "Insert string str at tail of queue n times (default 1); RAND inserts a random string", run: cmdInsertTail},
		{name: "rh", alias: "r", usage: "[str]", help: "Remove from head of queue, optionally comparing with str", run: cmdRemoveHead},
		{name: "rhq", help: "Remove from head of queue without reporting value", run: cmdRemoveHeadQuiet},
		{name: "size", alias: "s", usage: "[n]", help: "Compute queue size, optionally checking it is n", run: cmdSize},
		{name: "reverse", alias: "v", help: "Reverse queue", run: cmdReverse},
		{name: "show", alias: "p", help: "Display queue contents", run: cmdShow},
		{name: "option", alias: "o", usage: "[name value]", help: "Display or set options: fail, length, verbose", run: cmdOption},
		{name: "stats", help: "Display operation and allocation counters", run: cmdStats},
		{name: "help", alias: "?", help: "Show summary", run: cmdHelp},
		{name: "quit", alias: "q", help: "Exit program", run: cmdQuit},
	} {
		h.commands[cmd.name] = cmd
		if cmd.alias != "" {
			h.commands[cmd.alias] = cmd
		}
		h.ordered = append(h.ordered, cmd)
	}
	sort.Slice(h.ordered, func(i, j int) bool {
		return h.ordered[i].name < h.ordered[j].name
	})
}

func noArgs(args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return nil
}

func cmdNew(h *Harness, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	h.newQueue()
	return nil
}

func cmdFree(h *Harness, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	if h.q == nil {
		h.warn("calling free on null queue")
		return nil
	}
	h.freeQueue()
	return nil
}

func insertArgs(args []string) (string, int, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", 0, ErrUsage
	}
	count := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return "", 0, errors.Annotatef(ErrUsage, "invalid count %q", args[1])
		}
		count = n
	}
	return args[0], count, nil
}

func cmdInsertHead(h *Harness, args []string) error {
	s, count, err := insertArgs(args)
	if err != nil {
		return err
	}
	h.insert(true, s, count)
	return nil
}

func cmdInsertTail(h *Harness, args []string) error {
	s, count, err := insertArgs(args)
	if err != nil {
		return err
	}
	h.insert(false, s, count)
	return nil
}

func cmdRemoveHead(h *Harness, args []string) error {
	switch len(args) {
	case 0:
		h.remove(true, nil)
	case 1:
		h.remove(true, &args[0])
	default:
		return ErrUsage
	}
	return nil
}

func cmdRemoveHeadQuiet(h *Harness, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	h.remove(false, nil)
	return nil
}

func cmdSize(h *Harness, args []string) error {
	if len(args) > 1 {
		return ErrUsage
	}
	want := -1
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return errors.Annotatef(ErrUsage, "invalid size %q", args[0])
		}
		want = n
	}

	if h.q == nil {
		h.warn("calling size on null queue")
	}
	size := h.q.Size()
	h.printf("Queue size = %d\n", size)
	if size != len(h.model) {
		h.fail("computed queue size as %d, but correct value is %d", size, len(h.model))
	}
	if want >= 0 && size != want {
		h.fail("queue size %d, expected %d", size, want)
	}
	return nil
}

func cmdReverse(h *Harness, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	if h.q == nil {
		h.warn("calling reverse on null queue")
		h.q.Reverse()
		return nil
	}
	h.q.Reverse()
	slices.Reverse(h.model)
	h.check()
	return nil
}

func cmdShow(h *Harness, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	h.show()
	return nil
}

func cmdOption(h *Harness, args []string) error {
	switch len(args) {
	case 0:
		h.printf("fail\t%d\n", h.alloc.FailPercent())
		h.printf("length\t%d\n", h.cfg.StringLength)
		h.printf("verbose\t%d\n", h.cfg.Verbose)
		return nil
	case 2:
	default:
		return ErrUsage
	}

	value, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.Annotatef(ErrUsage, "invalid value %q", args[1])
	}
	switch args[0] {
	case "fail":
		if err := h.alloc.SetFailPercent(value); err != nil {
			return errors.Annotate(ErrUsage, err.Error())
		}
		h.cfg.FailPercent = value
	case "length":
		if value < 1 {
			return errors.Annotatef(ErrUsage, "length %d", value)
		}
		h.cfg.StringLength = value
	case "verbose":
		if value < 0 {
			return errors.Annotatef(ErrUsage, "verbose %d", value)
		}
		h.cfg.Verbose = value
	default:
		return errors.Annotatef(ErrUsage, "unknown option %q", args[0])
	}
	return nil
}

func cmdStats(h *Harness, args []string) error {
	if err := noArgs(args); err != nil {
		return err
	}
	for _, op := range telemetry.Ops() {
		s := h.metrics.Snapshot(op)
		h.printf("%-12s attempts=%d failures=%d avg=%v\n", op, s.Attempts, s.Failures, s.Average())
	}
	a := h.alloc.Stats()
	h.printf("%-12s allocs=%d frees=%d failures=%d live=%d bytes=%d\n",
		"memory", a.Allocs, a.Frees, a.Failures, a.Live, a.LiveBytes)
	return nil
}

func cmdHelp(h *Harness, args []string) error {
	for _, cmd := range h.ordered {
		name := cmd.name
		if cmd.alias != "" {
			name += "|" + cmd.alias
		}
		h.printf("\t%-10s %-14s| %s\n", name, cmd.usage, cmd.help)
	}
	return nil
}

func cmdQuit(h *Harness, args []string) error {
	h.quit = true
	return nil
}
