package harness

import (
	"bufio"
	"io"

	"github.com/juju/errors"
)

// LineSource yields command lines. ReadLine returns io.EOF when the input is
// exhausted.
type LineSource interface {
	ReadLine() (string, error)
}

type scannerSource struct {
	scanner *bufio.Scanner
}

// NewScannerSource reads newline separated commands from r.
func NewScannerSource(r io.Reader) LineSource {
	return &scannerSource{scanner: bufio.NewScanner(r)}
}

func (s *scannerSource) ReadLine() (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", errors.Annotate(err, "reading commands")
	}
	return "", io.EOF
}
