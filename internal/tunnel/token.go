package tunnel

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

var ErrNoToken = errors.New("no ngrok authtoken available")

// TokenStore resolves the ngrok authtoken: environment first, then the token file, then a prompt.
type TokenStore struct {
	envToken string
	path     string
	// Prompt asks the user for a token. It is nil when stdin is not a terminal.
	Prompt func() (string, error)
}

func NewTokenStore(envToken, path string) *TokenStore {
	ts := &TokenStore{envToken: strings.TrimSpace(envToken), path: path}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		ts.Prompt = func() (string, error) { return promptTerminal(os.Stdin, os.Stderr) }
	}
	return ts
}

func (ts *TokenStore) Path() string {
	return ts.path
}

// Load returns a stored token without prompting, or "" when none is stored.
func (ts *TokenStore) Load() (string, error) {
	if ts.envToken != "" {
		return ts.envToken, nil
	}
	if ts.path == "" {
		return "", nil
	}
	data, err := os.ReadFile(ts.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save persists token with owner-only permissions.
func (ts *TokenStore) Save(token string) error {
	if ts.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(ts.path), 0700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	if err := os.WriteFile(ts.path, []byte(strings.TrimSpace(token)+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Ask prompts for a new token and saves it.
func (ts *TokenStore) Ask() (string, error) {
	if ts.Prompt == nil {
		return "", ErrNoToken
	}
	token, err := ts.Prompt()
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoToken
	}
	ts.envToken = ""
	if err := ts.Save(token); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve loads a stored token or prompts for one.
func (ts *TokenStore) Resolve() (string, error) {
	token, err := ts.Load()
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}
	return ts.Ask()
}

func promptTerminal(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter your ngrok authtoken (https://dashboard.ngrok.com/get-started/your-authtoken): ")
	secret, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
