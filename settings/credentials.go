// Package settings stores AITranslate user settings, currently the API
// keys per provider.
//
// Keys are stored in the XDG data directory:
//
//	$XDG_DATA_HOME/aitranslate/auth.json  (default: ~/.local/share/aitranslate/auth.json)
//
// File permissions are 0600 (owner read/write only).
//
// Lookup order for API keys:
//  1. --api-key flag (highest priority)
//  2. AITRANSLATE_API_KEY environment variable
//  3. This store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dataDirName = "aitranslate"
	fileName    = "auth.json"
)

// Store holds provider API keys, keyed by provider ID.
type Store map[string]string

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// filePath returns the auth.json location, honoring XDG_DATA_HOME.
func filePath() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, dataDirName, fileName), nil
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// load reads the store; a missing file yields an empty store.
func load() (Store, error) {
	path, err := filePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Store{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

// save writes the store with owner-only permissions.
func save(s Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Public API
// ---------------------------------------------------------------------------

// GetAPIKey returns the stored API key for a provider, or "" when absent.
func GetAPIKey(providerID string) string {
	s, err := load()
	if err != nil {
		return ""
	}
	return s[providerID]
}

// SetAPIKey stores the API key for a provider.
func SetAPIKey(providerID, key string) error {
	s, err := load()
	if err != nil {
		return err
	}
	s[providerID] = key
	return save(s)
}

// DeleteAPIKey removes the API key for a provider. Removing an absent key
// is not an error.
func DeleteAPIKey(providerID string) error {
	s, err := load()
	if err != nil {
		return err
	}
	if _, ok := s[providerID]; !ok {
		return nil
	}
	delete(s, providerID)
	return save(s)
}

// Providers lists the provider IDs with a stored key.
func Providers() ([]string, error) {
	s, err := load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids, nil
}
