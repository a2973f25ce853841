package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// CLIClientID identifies the CLI in the password grant.
const CLIClientID = "adminkit-cli"

var errNoSession = errors.New("no saved session")

// session is the token saved by login.
type session struct {
	Server      string    `json:"server"`
	User        string    `json:"user"`
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
}

// sessionPath returns the token file. ADMINKIT_SESSION_FILE overrides the
// default under the user config directory.
func sessionPath() (string, error) {
	if p := os.Getenv("ADMINKIT_SESSION_FILE"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "adminkit", "session.json"), nil
}

func loadSession() (*session, error) {
	path, err := sessionPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	if !s.Expiry.IsZero() && time.Now().After(s.Expiry) {
		return nil, errors.New("session expired: run `adminkit login` again")
	}
	return &s, nil
}

func saveSession(s *session) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func removeSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// passwordLogin runs the OAuth2 resource owner password grant against the
// login endpoint.
func passwordLogin(ctx context.Context, server, prefix, user, password string) (*oauth2.Token, error) {
	conf := &oauth2.Config{
		ClientID: CLIClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  strings.TrimRight(server, "/") + prefix + "/users/login",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	token, err := conf.PasswordCredentialsToken(ctx, user, password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			var env envelope
			if json.Unmarshal(re.Body, &env) == nil && env.Message != "" {
				return nil, &APIError{StatusCode: re.Response.StatusCode, Code: env.Code, Message: env.Message}
			}
		}
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return token, nil
}
