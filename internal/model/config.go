package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. MAILBAR_LOG_LEVEL.
const envPrefix = "MAILBAR"

// AuthConfig holds the OAuth client registration.
type AuthConfig struct {
	ClientID     string   `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string   `mapstructure:"client_secret" yaml:"client_secret"`
	Scopes       []string `mapstructure:"scopes" yaml:"scopes"`

	// RevokeURL is called on sign-out to invalidate the token.
	RevokeURL string `mapstructure:"revoke_url" yaml:"revoke_url"`
}

// APIConfig tunes the mail provider client.
type APIConfig struct {
	// Endpoint overrides the provider base URL (tests, proxies).
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// RPS caps outbound requests per second; zero disables the limit.
	RPS          float64 `mapstructure:"rps" yaml:"rps"`
	SanitizeHTML bool    `mapstructure:"sanitize_html" yaml:"sanitize_html"`
}

// ServerConfig configures the local bridge listener.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// StorageConfig locates on-disk state.
type StorageConfig struct {
	DBPath        string `mapstructure:"db_path" yaml:"db_path"`
	CredentialDir string `mapstructure:"credential_dir" yaml:"credential_dir"`
}

// LogConfig selects log verbosity and output format.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Settings Settings      `mapstructure:"settings" yaml:"settings"`
	Auth     AuthConfig    `mapstructure:"auth" yaml:"auth"`
	API      APIConfig     `mapstructure:"api" yaml:"api"`
	Server   ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage  StorageConfig `mapstructure:"storage" yaml:"storage"`
	Log      LogConfig     `mapstructure:"log" yaml:"log"`
}

// DefaultConfigDir returns ~/.config/mailbar.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailbar")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailbar/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := DefaultConfigDir()
	return &AppConfig{
		Settings: DefaultSettings(),
		Auth: AuthConfig{
			Scopes:    []string{"https://www.googleapis.com/auth/gmail.modify"},
			RevokeURL: "https://oauth2.googleapis.com/revoke",
		},
		API: APIConfig{
			Timeout:      30 * time.Second,
			SanitizeHTML: true,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:7331",
			AllowedOrigins: []string{"chrome-extension://*", "moz-extension://*"},
		},
		Storage: StorageConfig{
			DBPath:        filepath.Join(dir, "mailbar.db"),
			CredentialDir: filepath.Join(dir, "credentials"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func setDefaults(v *viper.Viper, def *AppConfig) {
	v.SetDefault("settings.theme", string(def.Settings.Theme))
	v.SetDefault("settings.refresh_interval", def.Settings.RefreshInterval)
	v.SetDefault("settings.notifications_enabled", def.Settings.NotificationsEnabled)
	v.SetDefault("auth.client_id", def.Auth.ClientID)
	v.SetDefault("auth.client_secret", def.Auth.ClientSecret)
	v.SetDefault("auth.scopes", def.Auth.Scopes)
	v.SetDefault("auth.revoke_url", def.Auth.RevokeURL)
	v.SetDefault("api.endpoint", def.API.Endpoint)
	v.SetDefault("api.timeout", def.API.Timeout)
	v.SetDefault("api.rps", def.API.RPS)
	v.SetDefault("api.sanitize_html", def.API.SanitizeHTML)
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.allowed_origins", def.Server.AllowedOrigins)
	v.SetDefault("storage.db_path", def.Storage.DBPath)
	v.SetDefault("storage.credential_dir", def.Storage.CredentialDir)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// MAILBAR_* environment variables override file values. If the file does
// not exist, defaults (plus environment overrides) are returned.
func LoadConfig(path string) (*AppConfig, error) {
	return loadConfig(path, true)
}

// readConfigFile loads path without environment overrides, so the result
// is safe to write back to disk.
func readConfigFile(path string) (*AppConfig, error) {
	return loadConfig(path, false)
}

func loadConfig(path string, withEnv bool) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if withEnv {
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	cfg := defaultAppConfig()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// A hand-edited file may hold values the UI would never save.
	if !validTheme(cfg.Settings.Theme) {
		cfg.Settings.Theme = DefaultSettings().Theme
	}
	cfg.Settings.RefreshInterval = ClampRefreshInterval(cfg.Settings.RefreshInterval)

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("settings", map[string]any{
		"theme":                 string(cfg.Settings.Theme),
		"refresh_interval":      cfg.Settings.RefreshInterval,
		"notifications_enabled": cfg.Settings.NotificationsEnabled,
	})
	v.Set("auth", cfg.Auth)
	v.Set("api", map[string]any{
		"endpoint":      cfg.API.Endpoint,
		"timeout":       cfg.API.Timeout.String(),
		"rps":           cfg.API.RPS,
		"sanitize_html": cfg.API.SanitizeHTML,
	})
	v.Set("server", cfg.Server)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// ClampRefreshInterval forces minutes into the allowed range. Zero or
// negative values fall back to the default.
func ClampRefreshInterval(minutes int) int {
	switch {
	case minutes <= 0:
		return DefaultRefreshInterval
	case minutes > MaxRefreshInterval:
		return MaxRefreshInterval
	default:
		return minutes
	}
}

func validTheme(t Theme) bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}
