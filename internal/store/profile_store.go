package store

import (
	"fmt"
	"path/filepath"
	"sync"

	"cipherchat/internal/domain"
)

const profilesFile = "profiles.json"

// ProfileFileStore persists per-relay client profiles to disk.
type ProfileFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewProfileFileStore returns a ProfileFileStore rooted at dir.
func NewProfileFileStore(dir string) *ProfileFileStore {
	return &ProfileFileStore{dir: dir}
}

// SaveProfile stores or replaces the profile for (ServerURL, Username).
func (s *ProfileFileStore) SaveProfile(profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, profilesFile)
	profiles := make(map[string]domain.Profile)
	if err := readJSON(path, &profiles); err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}
	profiles[profileKey(profile.ServerURL, profile.Username)] = profile
	return writeJSON(path, profiles, 0o600)
}

// LoadProfile retrieves the profile for (serverURL, username).
func (s *ProfileFileStore) LoadProfile(
	serverURL string,
	username domain.Username,
) (domain.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := make(map[string]domain.Profile)
	if err := readJSON(filepath.Join(s.dir, profilesFile), &profiles); err != nil {
		return domain.Profile{}, false, fmt.Errorf("read profiles: %w", err)
	}
	profile, ok := profiles[profileKey(serverURL, username)]
	return profile, ok, nil
}

func profileKey(serverURL string, username domain.Username) string {
	return fmt.Sprintf("%s|%s", serverURL, username)
}

// Compile-time assertion that ProfileFileStore implements domain.ProfileStore.
var _ domain.ProfileStore = (*ProfileFileStore)(nil)
