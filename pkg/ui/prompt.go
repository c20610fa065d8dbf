package ui

import (
	"bufio"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/term"
)

// ReadSecret reads one value from stdin. Piped input is read as a single
// line; on a terminal the prompt is shown and the input is hidden.
func ReadSecret(prompt string) (string, error) {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return "", errors.Wrap(err, "checking stdin")
	}

	if (fi.Mode() & os.ModeCharDevice) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			return scanner.Text(), nil
		}
		if err := scanner.Err(); err != nil {
			return "", errors.Wrap(err, "reading stdin")
		}
		return "", errors.New("no input received on stdin")
	}

	fmt.Fprint(Out, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(Out)
	if err != nil {
		return "", errors.Wrap(err, "reading input")
	}
	return string(secret), nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
