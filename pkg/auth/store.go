// Package auth persists the dashboard credentials and hands the access token
// to the REST client and the push channel.
package auth

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// EnvToken overrides the stored access token when set.
const EnvToken = "LOOPDASH_TOKEN"

type Credentials struct {
	Server       string `yaml:"server,omitempty"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
}

// Store reads the credentials file on every access, so an external login (or
// logout) is picked up without restarting.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve user config dir")
	}
	return filepath.Join(dir, "loopdash", "credentials.yaml"), nil
}

func (s *Store) Path() string { return s.path }

// Load returns empty credentials when the file does not exist.
func (s *Store) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return Credentials{}, errors.Wrap(err, "read credentials")
	}
	var c Credentials
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Credentials{}, errors.Wrapf(err, "parse credentials %s", s.path)
	}
	return c, nil
}

// Token implements the token source used by the api and connection packages.
func (s *Store) Token() (string, error) {
	if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
		return env, nil
	}
	c, err := s.Load()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(c.AccessToken), nil
}

func (s *Store) Save(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create credentials dir")
	}
	b, err := yaml.Marshal(&c)
	if err != nil {
		return errors.Wrap(err, "marshal credentials")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "write credentials")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "replace credentials")
	}
	return nil
}

// RefreshFunc exchanges a refresh token for a new access token.
type RefreshFunc func(ctx context.Context, refreshToken string) (string, error)

// Renew swaps the stored access token for a fresh one obtained with the
// stored refresh token. It reports false when there is nothing to renew with.
// The file is left alone if another login replaced it during the exchange.
func (s *Store) Renew(ctx context.Context, refresh RefreshFunc) (bool, error) {
	c, err := s.Load()
	if err != nil {
		return false, err
	}
	if c.RefreshToken == "" {
		return false, nil
	}
	access, err := refresh(ctx, c.RefreshToken)
	if err != nil {
		return false, errors.Wrap(err, "refresh access token")
	}
	current, err := s.Load()
	if err != nil {
		return false, err
	}
	if current.RefreshToken != c.RefreshToken {
		return true, nil
	}
	current.AccessToken = access
	if err := s.Save(current); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes the credentials file; a missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove credentials")
	}
	return nil
}

// Watch calls onChange whenever the credentials file is written, replaced or
// removed, until ctx is done. The parent directory is watched because Save
// replaces the file by rename.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create credentials dir")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}

	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				log.Debug().Str("op", ev.Op.String()).Msg("credentials changed")
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("credentials watcher error")
		}
	}
}
