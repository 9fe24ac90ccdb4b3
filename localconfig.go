package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Preferences are the locally persisted user choices.
type Preferences struct {
	AutoRestake bool `json:"autoRestake"`
}

func ConfigFilename() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	cfgPath := filepath.Join(cfgDir, "daostake", "preferences.json")
	err = os.MkdirAll(filepath.Dir(cfgPath), 0775) // user+group RWX, others RX
	if err != nil {
		return "", fmt.Errorf("error making directory:%s, error:%w", cfgDir, err)
	}
	return cfgPath, nil
}

// PreferenceStore holds the preferences loaded once at startup. It's shared by reference with the
// commands and the daemon, SetAutoRestake is the only way to change them.
type PreferenceStore struct {
	sync.RWMutex
	path  string
	prefs Preferences
}

// LoadPreferenceStore reads the preference file of the user. A missing file yields the defaults.
func LoadPreferenceStore() (*PreferenceStore, error) {
	cfgName, err := ConfigFilename()
	if err != nil {
		return nil, err
	}
	return NewPreferenceStore(cfgName)
}

// NewPreferenceStore reads the preferences from path. On a read error the returned store still
// holds the defaults and can persist new choices.
func NewPreferenceStore(path string) (*PreferenceStore, error) {
	store := &PreferenceStore{path: path}
	prefs, err := readPreferences(path)
	if err != nil {
		return store, err
	}
	store.prefs = prefs
	return store, nil
}

func readPreferences(path string) (Preferences, error) {
	var prefs Preferences
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return prefs, nil
	}
	if err != nil {
		return prefs, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&prefs); err != nil {
		return Preferences{}, fmt.Errorf("error reading preferences %s: %w", path, err)
	}
	return prefs, nil
}

func (s *PreferenceStore) AutoRestake() bool {
	s.RLock()
	defer s.RUnlock()
	return s.prefs.AutoRestake
}

// SetAutoRestake persists the auto-restake choice, the in-memory value only changes once saved.
func (s *PreferenceStore) SetAutoRestake(enabled bool) error {
	s.Lock()
	defer s.Unlock()
	if s.path == "" {
		return errors.New("no location to save preferences to")
	}
	prefs := s.prefs
	prefs.AutoRestake = enabled
	if err := SavePreferences(s.path, prefs); err != nil {
		return err
	}
	s.prefs = prefs
	return nil
}

func SavePreferences(cfgName string, prefs Preferences) error {
	// Save into a temp file first and replace the preference file only if successfully written.
	temp, err := os.CreateTemp(filepath.Dir(cfgName), filepath.Base(cfgName)+".*")
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(temp)
	err = encoder.Encode(prefs)
	if err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("error saving preferences: %w", err)
	}

	err = temp.Close()
	if err != nil {
		return err
	}

	err = os.Rename(temp.Name(), cfgName)
	if err != nil {
		return err
	}
	slog.Info("preferences saved", "file", cfgName)
	return nil
}
