package model

import (
	"fmt"
	"sync"
)

// Theme selects the toolbar UI color scheme.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Refresh interval bounds, in minutes.
const (
	DefaultRefreshInterval = 5
	MinRefreshInterval     = 1
	MaxRefreshInterval     = 30
)

// Settings holds the user-editable preferences.
type Settings struct {
	Theme Theme `mapstructure:"theme" yaml:"theme" json:"theme"`

	// RefreshInterval is the poll period in minutes.
	RefreshInterval int `mapstructure:"refresh_interval" yaml:"refresh_interval" json:"refreshInterval"`

	NotificationsEnabled bool `mapstructure:"notifications_enabled" yaml:"notifications_enabled" json:"notificationsEnabled"`
}

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{
		Theme:                ThemeSystem,
		RefreshInterval:      DefaultRefreshInterval,
		NotificationsEnabled: true,
	}
}

// Validate checks that every field holds an allowed value.
func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return fmt.Errorf("invalid theme %q: want light, dark or system", s.Theme)
	}
	if s.RefreshInterval < MinRefreshInterval || s.RefreshInterval > MaxRefreshInterval {
		return fmt.Errorf(
			"invalid refresh interval %d: want %d-%d minutes",
			s.RefreshInterval, MinRefreshInterval, MaxRefreshInterval,
		)
	}
	return nil
}

// SettingsStore keeps the current settings and persists every change to
// the config file at path.
type SettingsStore struct {
	path string

	mu       sync.RWMutex
	settings Settings
}

// OpenSettingsStore loads settings from the config file at path.
func OpenSettingsStore(path string) (*SettingsStore, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return &SettingsStore{path: path, settings: cfg.Settings}, nil
}

// Get returns the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Save validates settings, writes them to disk and reloads the file so
// the in-memory copy matches what was persisted. Environment overrides are
// neither written to the file nor applied over the saved settings.
func (s *SettingsStore) Save(settings Settings) (Settings, error) {
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := readConfigFile(s.path)
	if err != nil {
		return Settings{}, err
	}
	cfg.Settings = settings
	if err := SaveConfig(s.path, cfg); err != nil {
		return Settings{}, err
	}

	reloaded, err := readConfigFile(s.path)
	if err != nil {
		return Settings{}, err
	}
	s.settings = reloaded.Settings
	return s.settings, nil
}
