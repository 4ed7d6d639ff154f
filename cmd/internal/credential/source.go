package credential

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves an API token from an environment variable or by
// prompting on the terminal. The value is cached after the first successful
// retrieval.
type Source struct {
	envVar string
	prompt string
	stdin  *os.File
	stderr io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a token source that checks envVar before prompting.
func NewSource(envVar, prompt string) *Source {
	return &Source{
		envVar: strings.TrimSpace(envVar),
		prompt: prompt,
		stdin:  os.Stdin,
		stderr: os.Stderr,
	}
}

// Get returns the cached token or resolves it on first use. A set but blank
// environment variable is an error rather than a prompt.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = strings.TrimSpace(value)
				return
			}
		}

		if s.stdin == nil || !term.IsTerminal(int(s.stdin.Fd())) {
			if s.envVar != "" {
				s.err = fmt.Errorf("api token required; set %s or run interactively", s.envVar)
			} else {
				s.err = errors.New("api token required and no terminal available")
			}
			return
		}

		fmt.Fprint(s.stderr, s.prompt)
		raw, err := term.ReadPassword(int(s.stdin.Fd()))
		fmt.Fprintln(s.stderr)
		if err != nil {
			s.err = fmt.Errorf("read token: %w", err)
			return
		}
		token := strings.TrimSpace(string(raw))
		if token == "" {
			s.err = errors.New("api token cannot be empty")
			return
		}
		s.value = token
	})
	return s.value, s.err
}
