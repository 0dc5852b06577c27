package harness

import (
	"bytes"
	"io"
	"os"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// DefaultStringLength is the size of the buffer rh copies removed strings into.
const DefaultStringLength = 1024

// Config controls a Harness.
//
// FailPercent is the probability, in percent, that an allocation made on
// behalf of the queue fails. StringLength is the capacity of the removal
// buffer, terminator included. Verbose selects how much is printed: 0 only
// errors and query results, 1 also operation results and warnings, 2 also
// echoes commands and shows the queue after every change.
type Config struct {
	FailPercent  int    `yaml:"fail-percent"`
	StringLength int    `yaml:"string-length"`
	Verbose      int    `yaml:"verbose"`
	Seed         uint64 `yaml:"seed"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		StringLength: DefaultStringLength,
		Verbose:      1,
		Seed:         1,
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.FailPercent < 0 || c.FailPercent > 100 {
		return errors.NotValidf("fail-percent %d", c.FailPercent)
	}
	if c.StringLength < 1 {
		return errors.NotValidf("string-length %d", c.StringLength)
	}
	if c.Verbose < 0 {
		return errors.NotValidf("verbose %d", c.Verbose)
	}
	return nil
}

// ParseConfig reads a YAML configuration on top of DefaultConfig. Unknown keys
// are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Annotate(err, "parsing harness config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// ReadConfigFile loads a configuration from path.
func ReadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Annotatef(err, "reading harness config %q", path)
	}
	return ParseConfig(data)
}
