// Package fs provides a file system-based credential storage for the monexa client.
package fs

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FSStorage keeps credential entries in a JSON file on the filesystem.
// One file can hold entries for several API servers; each FSStorage reads
// and writes the entries of a single server.
type FSStorage struct {
	mu      sync.RWMutex
	path    string
	server  string
	servers map[string]map[string]string
}

// credentialFile is the JSON structure stored on disk
type credentialFile struct {
	Servers map[string]map[string]string `json:"servers"`
}

// NewFSStorage creates a new FS-based storage for serverURL.
// If path is empty, defaults to ~/.config/<appName>/credentials.json
func NewFSStorage(path string, appName string, serverURL string) (*FSStorage, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "monexa"
		}
		path = filepath.Join(configDir, appName, "credentials.json")
	}

	server, err := normalizeURL(serverURL)
	if err != nil {
		return nil, err
	}

	s := &FSStorage{
		path:    path,
		server:  server,
		servers: make(map[string]map[string]string),
	}

	// Load existing credentials if file exists
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return s, nil
}

// load reads credentials from disk
func (s *FSStorage) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var file credentialFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse credentials file: %w", err)
	}

	if file.Servers != nil {
		s.servers = file.Servers
	}
	return nil
}

// normalizeURL normalizes a server URL for use as a key
func normalizeURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	if u.Scheme == "" {
		u.Scheme = "https"
	}

	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

// GetItem implements client.Storage
func (s *FSStorage) GetItem(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.servers[s.server][key]
	return v, ok, nil
}

// SetItems implements client.Storage. The file is rewritten before the
// in-memory view changes, so a failed write leaves both untouched.
func (s *FSStorage) SetItems(items map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := maps.Clone(s.servers[s.server])
	if entry == nil {
		entry = make(map[string]string, len(items))
	}
	maps.Copy(entry, items)
	return s.commitLocked(entry)
}

// RemoveItems implements client.Storage
func (s *FSStorage) RemoveItems(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.servers[s.server]
	if !ok {
		return nil
	}
	entry := maps.Clone(current)
	for _, k := range keys {
		delete(entry, k)
	}
	return s.commitLocked(entry)
}

// commitLocked persists entry as this server's credentials.
// Caller must hold s.mu
func (s *FSStorage) commitLocked(entry map[string]string) error {
	next := maps.Clone(s.servers)
	if len(entry) == 0 {
		delete(next, s.server)
	} else {
		next[s.server] = entry
	}

	// Ensure directory exists with restricted permissions
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(credentialFile{Servers: next}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}
	if err := writeAtomicFile(s.path, data); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	s.servers = next
	return nil
}

// ListServers returns all server URLs with stored credentials
func (s *FSStorage) ListServers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	servers := make([]string, 0, len(s.servers))
	for k := range s.servers {
		servers = append(servers, k)
	}
	return servers
}

// Server returns the normalized server key this storage writes under
func (s *FSStorage) Server() string {
	return s.server
}

// Path returns the path to the credentials file
func (s *FSStorage) Path() string {
	return s.path
}
