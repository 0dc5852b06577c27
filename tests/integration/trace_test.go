package integration

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/timzifer/queuelab/internal/harness"
	"github.com/timzifer/queuelab/internal/telemetry"
)

// expectedErrors lists traces that are meant to report errors.
var expectedErrors = map[string]int{
	"trace-09-bad.cmd": 3,
}

func runTrace(t *testing.T, path string) (harness.Result, string) {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("cannot open trace: %v", err)
	}
	defer file.Close()

	var out bytes.Buffer
	h, err := harness.New(harness.DefaultConfig(), &out, telemetry.NewOpMetrics())
	if err != nil {
		t.Fatalf("cannot create harness: %v", err)
	}
	res, err := h.Run(harness.NewScannerSource(file))
	if err != nil {
		t.Fatalf("trace aborted: %v", err)
	}
	return res, out.String()
}

func TestTraces(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "trace-*.cmd"))
	if err != nil {
		t.Fatalf("cannot list traces: %v", err)
	}
	if len(paths) == 0 {
		t.Fatalf("expected trace files in testdata")
	}

	for _, path := range paths {
		name := filepath.Base(path)
		t.Run(strings.TrimSuffix(name, ".cmd"), func(t *testing.T) {
			res, out := runTrace(t, path)

			if res.Leaked != 0 || res.BadFrees != 0 {
				t.Fatalf("expected no leaks, got leaked=%d badFrees=%d\n%s", res.Leaked, res.BadFrees, out)
			}
			if want := expectedErrors[name]; res.Errors != want {
				t.Fatalf("expected %d errors, got %d\n%s", want, res.Errors, out)
			}
			if res.Commands == 0 {
				t.Fatalf("expected trace to execute commands")
			}
		})
	}
}

func TestTraceOutput(t *testing.T) {
	res, out := runTrace(t, filepath.Join("testdata", "trace-03-reverse.cmd"))
	if !res.OK() {
		t.Fatalf("expected trace to pass, got %+v\n%s", res, out)
	}

	want := []string{
		"q = [c a b]",
		"Queue size = 3",
		"Removed b from queue",
		"Removed a from queue",
		"Removed d from queue",
		"Removed c from queue",
		"Queue size = 0",
	}
	rest := out
	for _, line := range want {
		i := strings.Index(rest, line+"\n")
		if i < 0 {
			t.Fatalf("expected %q in order in output:\n%s", line, out)
		}
		rest = rest[i+len(line)+1:]
	}
}

func TestTraceUnderRandomFailures(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		cfg := harness.DefaultConfig()
		cfg.FailPercent = 25
		cfg.Seed = seed
		cfg.Verbose = 0

		var out bytes.Buffer
		h, err := harness.New(cfg, &out, telemetry.NewOpMetrics())
		if err != nil {
			t.Fatalf("cannot create harness: %v", err)
		}

		script := strings.Repeat("new\nih RAND 8\nit RAND 8\nreverse\nrhq\nrh\nsize\n", 25) + "free\n"
		res, err := h.Run(harness.NewScannerSource(strings.NewReader(script)))
		if err != nil {
			t.Fatalf("seed %d: trace aborted: %v", seed, err)
		}
		if !res.OK() {
			t.Fatalf("seed %d: expected clean run, got %+v\n%s", seed, res, out.String())
		}
	}
}
