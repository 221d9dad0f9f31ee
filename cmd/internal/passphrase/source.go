package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves the operator keystore passphrase and hands the same value to
// every caller. Resolution order: the configured environment variable, then an
// interactive terminal prompt. A failed resolution is not cached, so a mistyped
// prompt can be retried.
type Source struct {
	envVar string

	mu       sync.Mutex
	resolved bool
	value    string
}

// NewSource builds a source that consults envVar before prompting.
func NewSource(envVar string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar)}
}

// Get returns the passphrase, prompting at most once. Blank passphrases are
// rejected so an operator keystore is never written unprotected.
func (s *Source) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return s.value, nil
	}
	value, err := s.resolve()
	if err != nil {
		return "", err
	}
	s.value = value
	s.resolved = true
	return value, nil
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if fromEnv, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(fromEnv) == "" {
				return "", fmt.Errorf("passphrase: %s is set but blank", s.envVar)
			}
			return fromEnv, nil
		}
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		if s.envVar != "" {
			return "", fmt.Errorf("passphrase: no terminal for the prompt; set %s", s.envVar)
		}
		return "", errors.New("passphrase: no terminal available for the prompt")
	}

	fmt.Fprint(os.Stderr, "Operator keystore passphrase: ")
	entered, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("passphrase: read prompt: %w", err)
	}
	if strings.TrimSpace(string(entered)) == "" {
		return "", errors.New("passphrase: blank passphrase rejected")
	}
	return string(entered), nil
}
