// Package ui holds the terminal-facing pieces: interactive prompts and
// download progress rendering.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the user questions on the terminal. The reader and
// writer are injectable for tests; the zero value is not usable,
// construct with NewPrompter.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	// passwordFd is the file descriptor used for masked input; -1
	// falls back to plain line input (non-tty environments, tests).
	passwordFd int
}

// NewPrompter builds a prompter over stdin/stdout.
func NewPrompter() *Prompter {
	return &Prompter{in: bufio.NewReader(os.Stdin), out: os.Stdout, passwordFd: int(os.Stdin.Fd())}
}

// NewPrompterWith builds a prompter over arbitrary streams, with plain
// (unmasked) password input.
func NewPrompterWith(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, passwordFd: -1}
}

// Input reads one trimmed line.
func (p *Prompter) Input(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password reads a line without echoing when attached to a terminal.
func (p *Prompter) Password(prompt string) (string, error) {
	if p.passwordFd >= 0 && term.IsTerminal(p.passwordFd) {
		fmt.Fprint(p.out, prompt)
		raw, err := term.ReadPassword(p.passwordFd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return p.Input(prompt)
}

// PickOne presents a numbered list and reads one choice. An empty line
// declines; an out-of-range or non-numeric answer is re-asked up to
// three times before counting as a decline.
func (p *Prompter) PickOne(prompt string, items []string) (int, bool, error) {
	fmt.Fprintln(p.out, prompt)
	for i, item := range items {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, item)
	}

	for attempt := 0; attempt < 3; attempt++ {
		answer, err := p.Input(fmt.Sprintf("Choice [1-%d, empty to cancel]: ", len(items)))
		if err != nil {
			return 0, false, err
		}
		if answer == "" {
			return 0, false, nil
		}
		choice, err := strconv.Atoi(answer)
		if err != nil || choice < 1 || choice > len(items) {
			fmt.Fprintln(p.out, "Invalid choice.")
			continue
		}
		return choice - 1, true, nil
	}
	return 0, false, nil
}

// PickMany reads a comma-separated set of choices from a numbered list.
// "all" selects everything; an empty line selects nothing.
func (p *Prompter) PickMany(prompt string, items []string) ([]int, error) {
	fmt.Fprintln(p.out, prompt)
	for i, item := range items {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, item)
	}

	answer, err := p.Input("Choices (comma-separated, 'all', empty for none): ")
	if err != nil {
		return nil, err
	}
	if answer == "" {
		return nil, nil
	}
	if strings.EqualFold(answer, "all") {
		all := make([]int, len(items))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	var picked []int
	seen := map[int]bool{}
	for _, part := range strings.Split(answer, ",") {
		choice, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || choice < 1 || choice > len(items) {
			return nil, fmt.Errorf("invalid choice %q", strings.TrimSpace(part))
		}
		if !seen[choice-1] {
			seen[choice-1] = true
			picked = append(picked, choice-1)
		}
	}
	return picked, nil
}

// Confirm asks a yes/no question; empty input takes the default.
func (p *Prompter) Confirm(prompt string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	answer, err := p.Input(fmt.Sprintf("%s [%s]: ", prompt, hint))
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
