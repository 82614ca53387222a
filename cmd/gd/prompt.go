package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// prompter reads answers from the command's stdin. A single bufio.Reader is
// kept so buffered input is not lost between prompts.
type prompter struct {
	cmd *cobra.Command
	in  *bufio.Reader
}

var errNoInput = errors.New("no input")

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{cmd: cmd, in: bufio.NewReader(cmd.InOrStdin())}
}

// line prints label and returns the trimmed answer.
func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.cmd.OutOrStdout(), label)
	s, err := p.read()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// secret reads a password without echo when stdin is a terminal, and as a
// plain line otherwise.
func (p *prompter) secret(label string) (string, error) {
	if f, ok := p.cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.cmd.OutOrStdout(), label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	fmt.Fprint(p.cmd.OutOrStdout(), label)
	s, err := p.read()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// read returns one line. A final line without a newline is accepted.
func (p *prompter) read() (string, error) {
	s, err := p.in.ReadString('\n')
	if err == io.EOF && s != "" {
		return s, nil
	}
	if err == io.EOF {
		return "", errNoInput
	}
	return s, err
}

// confirm asks a yes/no question; only "y" or "yes" agree.
func (p *prompter) confirm(question string) bool {
	ans, err := p.line(question + " [y/N]: ")
	if err != nil {
		return false
	}
	ans = strings.ToLower(ans)
	return ans == "y" || ans == "yes"
}
