package cli

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

var errNoPassword = errors.New("password required: pass -password or run from a terminal")

// promptPassword reads a password from stdin without echo. The prompt goes
// to stderr so command output stays machine readable.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return "", errNoPassword
	}

	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := readPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
