package main

import (
	"io"
	"strings"

	"github.com/juju/errors"
	"github.com/peterh/liner"
)

// promptSource reads commands from the terminal with line editing and history.
type promptSource struct {
	state  *liner.State
	prompt string
}

func newPromptSource(prompt string) *promptSource {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	return &promptSource{state: state, prompt: prompt}
}

func (p *promptSource) ReadLine() (string, error) {
	line, err := p.state.Prompt(p.prompt)
	switch {
	case err == liner.ErrPromptAborted || err == io.EOF:
		return "", io.EOF
	case err != nil:
		return "", errors.Annotate(err, "reading command")
	}
	if strings.TrimSpace(line) != "" {
		p.state.AppendHistory(line)
	}
	return line, nil
}

func (p *promptSource) Close() error {
	return p.state.Close()
}
