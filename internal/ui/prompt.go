package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNotTerminal is returned when a secret is requested without a terminal
var ErrNotTerminal = errors.New("standard input is not a terminal")

// Prompter reads answers from the user
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	isTerm func(int) bool
	secret func(int) ([]byte, error)
}

// NewPrompter creates a prompter on stdin/stdout
func NewPrompter() *Prompter {
	return &Prompter{
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		fd:     int(os.Stdin.Fd()),
		isTerm: term.IsTerminal,
		secret: term.ReadPassword,
	}
}

// Line asks for a value, returning def when the answer is empty
func (p *Prompter) Line(label, def string) (string, error) {
	prompt := label
	if def != "" {
		prompt += HintStyle.Render(" [" + def + "]")
	}
	fmt.Fprint(p.out, HeaderParamKeyStyle.Render(prompt+": "))

	input, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	return input, nil
}

// Secret asks for a value without echoing it
func (p *Prompter) Secret(label string) (string, error) {
	if !p.isTerm(p.fd) {
		return "", ErrNotTerminal
	}
	fmt.Fprint(p.out, HeaderParamKeyStyle.Render(label+": "))
	data, err := p.secret(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Confirm asks a yes/no question, defaulting to no
func (p *Prompter) Confirm(question string) bool {
	fmt.Fprint(p.out, WarningTitleStyle.Render(question+" [y/N]: "))
	input, err := p.in.ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	return false
}
