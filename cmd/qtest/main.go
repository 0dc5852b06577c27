// Command qtest drives a queue from a trace file or an interactive prompt and
// reports whether the queue behaved correctly.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/timzifer/queuelab/internal/harness"
	"github.com/timzifer/queuelab/internal/telemetry"
)

var logger = loggo.GetLogger("queuelab.qtest")

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	defaultLogs = "<root>=WARNING"
)

type flags struct {
	file        string
	configPath  string
	metricsPath string
	logSpec     string
	verbose     int
	failPercent int
	length      int
	seed        uint64
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var f flags
	fs := gnuflag.NewFlagSet("qtest", gnuflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.file, "f", "", "read commands from file instead of standard input")
	fs.StringVar(&f.configPath, "config", "", "YAML harness configuration file")
	fs.StringVar(&f.metricsPath, "metrics", "", "write operation metrics in Prometheus text format to file on exit")
	fs.StringVar(&f.logSpec, "log", defaultLogs, "loggo logging configuration")
	fs.IntVar(&f.verbose, "v", 1, "verbosity level (0-2)")
	fs.IntVar(&f.failPercent, "fail", 0, "percentage of queue allocations that fail")
	fs.IntVar(&f.length, "length", harness.DefaultStringLength, "size of the removal buffer")
	fs.Uint64Var(&f.seed, "seed", 1, "seed for failure injection and RAND strings")
	if err := fs.Parse(true, args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(stderr, "qtest: unexpected arguments %q\n", fs.Args())
		return exitUsage
	}

	if err := setupLogging(stderr, f.logSpec); err != nil {
		fmt.Fprintf(stderr, "qtest: %v\n", err)
		return exitUsage
	}

	cfg, err := loadConfig(fs, f)
	if err != nil {
		fmt.Fprintf(stderr, "qtest: %v\n", err)
		return exitUsage
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewOpMetrics()
	registry.MustRegister(metrics)

	h, err := harness.New(cfg, stdout, metrics)
	if err != nil {
		fmt.Fprintf(stderr, "qtest: %v\n", err)
		return exitUsage
	}

	src, closeSource, err := openSource(f.file, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "qtest: %v\n", err)
		return exitUsage
	}
	res, runErr := h.Run(src)
	closeSource()

	if f.metricsPath != "" {
		if err := writeMetrics(registry, f.metricsPath); err != nil {
			logger.Errorf("cannot write metrics: %v", err)
		}
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "qtest: %v\n", runErr)
		return exitFailed
	}

	if res.Leaked != 0 {
		fmt.Fprintf(stdout, "ERROR: %d blocks still allocated at exit\n", res.Leaked)
	}
	if res.BadFrees != 0 {
		fmt.Fprintf(stdout, "ERROR: %d frees of unallocated blocks\n", res.BadFrees)
	}
	if !res.OK() {
		fmt.Fprintf(stdout, "Error count = %d\n", res.Errors)
		return exitFailed
	}
	return exitOK
}

func setupLogging(stderr io.Writer, spec string) error {
	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(stderr, loggo.DefaultFormatter)); err != nil {
		return errors.Annotate(err, "configuring log writer")
	}
	if err := loggo.ConfigureLoggers(spec); err != nil {
		return errors.Annotatef(err, "invalid log configuration %q", spec)
	}
	return nil
}

// loadConfig reads the optional configuration file and applies the flags that
// were given explicitly on top of it.
func loadConfig(fs *gnuflag.FlagSet, f flags) (harness.Config, error) {
	cfg := harness.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = harness.ReadConfigFile(f.configPath); err != nil {
			return harness.Config{}, errors.Trace(err)
		}
	}

	fs.Visit(func(flag *gnuflag.Flag) {
		switch flag.Name {
		case "v":
			cfg.Verbose = f.verbose
		case "fail":
			cfg.FailPercent = f.failPercent
		case "length":
			cfg.StringLength = f.length
		case "seed":
			cfg.Seed = f.seed
		}
	})
	return cfg, errors.Trace(cfg.Validate())
}

func openSource(path string, stdin io.Reader) (harness.LineSource, func(), error) {
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, nil, errors.Annotatef(err, "opening trace %q", path)
		}
		return harness.NewScannerSource(file), func() { _ = file.Close() }, nil
	}
	if isTerminal(stdin) {
		src := newPromptSource("cmd> ")
		return src, func() { _ = src.Close() }, nil
	}
	return harness.NewScannerSource(stdin), func() {}, nil
}

func isTerminal(r io.Reader) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

func writeMetrics(g prometheus.Gatherer, path string) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Annotate(err, "gathering metrics")
	}
	out, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			_ = out.Close()
			return errors.Annotatef(err, "writing %s", mf.GetName())
		}
	}
	return errors.Trace(out.Close())
}
