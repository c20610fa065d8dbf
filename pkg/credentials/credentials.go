// Package credentials persists the GitHub token, username and OpenAI API key
// kit needs between invocations.
package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const (
	configDirName   = "kit"
	credentialsFile = "config.json"

	// ConfigDirEnv overrides the directory holding config.json.
	ConfigDirEnv = "KIT_CONFIG_DIR"
)

var (
	// ErrNotFound is returned by Load when no credential file has been saved yet.
	ErrNotFound = errors.New("credentials not found")

	// ErrCorrupt is returned when the credential file exists but cannot be parsed.
	ErrCorrupt = errors.New("credentials file is corrupt")
)

// Store loads and saves the credential record.
type Store interface {
	// Load returns the stored record, ErrNotFound or ErrCorrupt.
	Load() (*Record, error)

	// Save merges update into the stored record and writes it back.
	Save(update Update) error
}

// FileStore keeps the credential record as a single JSON file.
//
// Save is a plain read-modify-write with no locking: two kit processes
// saving at the same time can lose one of the updates.
type FileStore struct {
	path string
}

// Ensure interface compatibility.
var _ Store = (*FileStore)(nil)

// DefaultDir resolves the kit configuration directory. If override is
// non-empty it wins, then $KIT_CONFIG_DIR, then the OS user config dir.
func DefaultDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv(ConfigDirEnv); env != "" {
		return env, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "could not find config directory")
	}
	return filepath.Join(base, configDirName), nil
}

// NewFileStore creates a FileStore rooted at DefaultDir(override), creating
// the directory if needed.
func NewFileStore(override string) (*FileStore, error) {
	dir, err := DefaultDir(override)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating config dir")
	}

	return &FileStore{path: filepath.Join(dir, credentialsFile)}, nil
}

// Load reads and parses the credential file.
func (s *FileStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "reading credentials")
	}

	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		err = errors.Mark(errors.Wrapf(err, "parsing %s", s.path), ErrCorrupt)
		return nil, errors.WithHintf(err, "remove %s and run `kit auth login` again", s.path)
	}

	return rec, nil
}

// Save applies update on top of the existing record, or an empty one when
// nothing has been saved yet, and overwrites the file with 0600 permissions.
// A corrupt file is left in place and ErrCorrupt is returned.
func (s *FileStore) Save(update Update) error {
	rec, err := s.Load()
	switch {
	case errors.Is(err, ErrNotFound):
		rec = &Record{}
	case err != nil:
		return err
	}

	update.Apply(rec)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding credentials")
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.Wrap(err, "writing credentials")
	}

	return nil
}

// Clear drops the GitHub token and username. The OpenAI key is kept.
func (s *FileStore) Clear() error {
	return s.Save(Update{Token: String(""), Username: String("")})
}

// Path returns the resolved path of the credential file.
func (s *FileStore) Path() string {
	return s.path
}
