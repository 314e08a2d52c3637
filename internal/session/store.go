package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the two client-side keys: the bearer credential and the
// last-active guild id. The keys are independent opaque strings; no
// multi-key transaction is ever needed.
type Store interface {
	Credential() (string, error)
	SetCredential(credential string) error
	ClearCredential() error

	LastGuildID() (string, error)
	SetLastGuildID(guildID string) error
}

type stateFile struct {
	Credential  string `json:"credential,omitempty"`
	LastGuildID string `json:"last_guild_id,omitempty"`
}

// FileStore keeps client state in a JSON file under the user config dir.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore builds a store writing to path. The parent directory is
// created on first write, not here.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Credential returns the stored bearer credential, empty when signed out.
func (s *FileStore) Credential() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.read()
	if err != nil {
		return "", err
	}
	return state.Credential, nil
}

// SetCredential persists the bearer credential.
func (s *FileStore) SetCredential(credential string) error {
	return s.update(func(state *stateFile) {
		state.Credential = credential
	})
}

// ClearCredential deletes the bearer credential, leaving other keys intact.
func (s *FileStore) ClearCredential() error {
	return s.update(func(state *stateFile) {
		state.Credential = ""
	})
}

// LastGuildID returns the last-active guild persisted by a previous run.
func (s *FileStore) LastGuildID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.read()
	if err != nil {
		return "", err
	}
	return state.LastGuildID, nil
}

// SetLastGuildID persists the active guild for the next run.
func (s *FileStore) SetLastGuildID(guildID string) error {
	return s.update(func(state *stateFile) {
		state.LastGuildID = guildID
	})
}

func (s *FileStore) update(mutate func(*stateFile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.read()
	if err != nil {
		return err
	}
	mutate(state)
	return s.write(state)
}

func (s *FileStore) read() (*stateFile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &stateFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt state file means signed out, not a dead client.
		return &stateFile{}, nil
	}
	return &state, nil
}

func (s *FileStore) write(state *stateFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, s.path)
}
