package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrConfirmationRequired is returned when a prompt cannot be shown.
var ErrConfirmationRequired = errors.New("stdin is not a terminal; pass --yes to proceed without prompts")

// prompter asks yes/no questions. With yes set every question is answered
// without reading input.
type prompter struct {
	in          *bufio.Reader
	out         io.Writer
	yes         bool
	interactive bool
}

func newPrompter(in io.Reader, out io.Writer, yes, interactive bool) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out, yes: yes, interactive: interactive}
}

// confirm defaults to no. A closed input counts as no.
func (p *prompter) confirm(question string) (bool, error) {
	if p.yes {
		return true, nil
	}
	if !p.interactive {
		return false, ErrConfirmationRequired
	}

	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
