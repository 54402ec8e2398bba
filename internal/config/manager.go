package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. LOGSIFT_SERVER_PORT.
const EnvPrefix = "LOGSIFT"

// Manager owns a viper instance and the last successfully loaded Config.
type Manager struct {
	v *viper.Viper

	mu  sync.RWMutex
	cfg *Config
}

// Load reads path, or $HOME/.logsift.yaml and ./.logsift.yaml when path is
// empty. A missing default file is not an error; a missing explicit one is.
func Load(path string) (*Manager, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".logsift")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	m := &Manager{v: v}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Viper exposes the underlying instance so commands can bind flags to keys.
func (m *Manager) Viper() *viper.Viper { return m.v }

// File is the config file in use, or "" when running on defaults.
func (m *Manager) File() string { return m.v.ConfigFileUsed() }

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := *m.cfg
	c.Server.AllowedOrigins = append([]string(nil), m.cfg.Server.AllowedOrigins...)
	return c
}

// Reload re-reads the config file and applies it if it validates.
func (m *Manager) Reload() error {
	if m.File() != "" {
		if err := m.v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return m.reload()
}

// Watch calls onChange with every valid edit of the config file and onError
// with every rejected one. It reports false when there is no file to watch.
func (m *Manager) Watch(onChange func(Config), onError func(error)) bool {
	if m.File() == "" {
		return false
	}
	m.v.OnConfigChange(func(e fsnotify.Event) {
		if err := m.reload(); err != nil {
			if onError != nil {
				onError(fmt.Errorf("%s: %w", e.Name, err))
			}
			return
		}
		if onChange != nil {
			onChange(m.Get())
		}
	})
	m.v.WatchConfig()
	return true
}

// reload unmarshals the viper state; the previous config survives a failure.
func (m *Manager) reload() error {
	cfg := &Config{}
	if err := m.v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{}
	}
	if err := cfg.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)

	v.SetDefault("analysis.profile", d.Analysis.Profile)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	v.SetDefault("store.capacity", d.Store.Capacity)
}
