package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func runQtest(c *qt.C, stdin string, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunFromStdin(t *testing.T) {
	c := qt.New(t)

	code, stdout, _ := runQtest(c, "new\nit a\nit b\nih c\nreverse\nshow\nrh b\nfree\n")
	c.Assert(code, qt.Equals, exitOK)
	c.Assert(stdout, qt.Contains, "q = [b a c]\n")
	c.Assert(stdout, qt.Contains, "Removed b from queue\n")
}

func TestRunFromFile(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "trace.cmd")
	c.Assert(os.WriteFile(path, []byte("new\nit dolphin 3\nsize 3\nfree\n"), 0o644), qt.IsNil)

	code, stdout, _ := runQtest(c, "", "-f", path, "-v", "0")
	c.Assert(code, qt.Equals, exitOK)
	c.Assert(stdout, qt.Equals, "Queue size = 3\n")
}

func TestRunReportsErrors(t *testing.T) {
	c := qt.New(t)

	code, stdout, _ := runQtest(c, "new\nit a\nrh b\n")
	c.Assert(code, qt.Equals, exitFailed)
	c.Assert(stdout, qt.Contains, `ERROR: removed value "a" does not match expected value "b"`)
	c.Assert(stdout, qt.Contains, "Error count = 1\n")
}

func TestRunConfigAndFlags(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	config := filepath.Join(dir, "qtest.yaml")
	c.Assert(os.WriteFile(config, []byte("string-length: 3\nverbose: 0\n"), 0o644), qt.IsNil)

	code, stdout, _ := runQtest(c, "option\n", "--config", config, "--length", "5")
	c.Assert(code, qt.Equals, exitOK)
	c.Assert(stdout, qt.Equals, "fail\t0\nlength\t5\nverbose\t0\n")
}

func TestRunWritesMetrics(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "metrics.prom")

	code, _, _ := runQtest(c, "new\nit a\nrh\nfree\n", "--metrics", path)
	c.Assert(code, qt.Equals, exitOK)

	data, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, `queuelab_operations_total{op="insert_tail"} 1`)
	c.Assert(string(data), qt.Contains, `queuelab_operation_failures_total{op="remove_head"} 0`)
}

func TestRunUsageErrors(t *testing.T) {
	c := qt.New(t)

	code, _, stderr := runQtest(c, "", "extra")
	c.Assert(code, qt.Equals, exitUsage)
	c.Assert(stderr, qt.Contains, "unexpected arguments")

	code, _, stderr = runQtest(c, "", "--fail", "150")
	c.Assert(code, qt.Equals, exitUsage)
	c.Assert(stderr, qt.Contains, "fail-percent 150 not valid")

	code, _, stderr = runQtest(c, "", "-f", filepath.Join(c.TempDir(), "missing.cmd"))
	c.Assert(code, qt.Equals, exitUsage)
	c.Assert(stderr, qt.Contains, "opening trace")

	code, _, _ = runQtest(c, "", "--no-such-flag")
	c.Assert(code, qt.Equals, exitUsage)
}
