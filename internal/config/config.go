// Package config handles daemon configuration file management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/op/go-logging"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/austinkregel/local-media/mediasessiond/internal/listener"
)

var log = logging.MustGetLogger("config")

const (
	configFileName = "config.yaml"
	envPrefix      = "MEDIASESSIOND"
)

// Config represents the daemon configuration
type Config struct {
	// AppID is the package name that listener components must belong to
	AppID string `yaml:"appId" mapstructure:"appId"`

	Listener ListenerConfig `yaml:"listener" mapstructure:"listener"`
	Events   EventsConfig   `yaml:"events" mapstructure:"events"`
	Bridge   BridgeConfig   `yaml:"bridge" mapstructure:"bridge"`
	DBus     DBusConfig     `yaml:"dbus" mapstructure:"dbus"`
	Art      ArtConfig      `yaml:"art" mapstructure:"art"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ListenerConfig holds the listener entitlement
type ListenerConfig struct {
	// Component is this daemon's listener component, "pkg/cls"
	Component string `yaml:"component" mapstructure:"component"`

	// EnabledListeners is the colon-separated list of granted components
	EnabledListeners string `yaml:"enabledListeners" mapstructure:"enabledListeners"`
}

// EventsConfig contains event stream settings
type EventsConfig struct {
	// SnapshotOnChange sends the full session list instead of a change flag
	SnapshotOnChange bool `yaml:"snapshotOnChange" mapstructure:"snapshotOnChange"`
}

// BridgeConfig contains client-facing transport settings
type BridgeConfig struct {
	// SocketPath for the IPC socket (default: /tmp/mediasessiond-<uid>.sock)
	SocketPath string `yaml:"socketPath" mapstructure:"socketPath"`

	// HTTPAddr for the HTTP/WebSocket API. Empty disables it.
	HTTPAddr string `yaml:"httpAddr" mapstructure:"httpAddr"`

	AllowedOrigins []string `yaml:"allowedOrigins" mapstructure:"allowedOrigins"`
	RequireAuth    bool     `yaml:"requireAuth" mapstructure:"requireAuth"`
}

// DBusConfig contains session bus settings
type DBusConfig struct {
	CallTimeout time.Duration `yaml:"callTimeout" mapstructure:"callTimeout"`
}

// ArtConfig contains cover art settings
type ArtConfig struct {
	// MaxSize bounds the longer side of encoded art in pixels (default: 300)
	MaxSize      int           `yaml:"maxSize" mapstructure:"maxSize"`
	FetchTimeout time.Duration `yaml:"fetchTimeout" mapstructure:"fetchTimeout"`
	MaxBytes     int64         `yaml:"maxBytes" mapstructure:"maxBytes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// MarshalYAML writes durations in their readable form
func (c DBusConfig) MarshalYAML() (interface{}, error) {
	return map[string]string{"callTimeout": c.CallTimeout.String()}, nil
}

func (c ArtConfig) MarshalYAML() (interface{}, error) {
	return struct {
		MaxSize      int    `yaml:"maxSize"`
		FetchTimeout string `yaml:"fetchTimeout"`
		MaxBytes     int64  `yaml:"maxBytes"`
	}{c.MaxSize, c.FetchTimeout.String(), c.MaxBytes}, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		AppID: "mediasessiond",
		Listener: ListenerConfig{
			Component:        "mediasessiond/.MediaListener",
			EnabledListeners: "",
		},
		Bridge: BridgeConfig{
			SocketPath:     fmt.Sprintf("/tmp/mediasessiond-%d.sock", os.Getuid()),
			HTTPAddr:       "127.0.0.1:7797",
			AllowedOrigins: []string{},
			RequireAuth:    true,
		},
		DBus: DBusConfig{
			CallTimeout: 2 * time.Second,
		},
		Art: ArtConfig{
			MaxSize:      300,
			FetchTimeout: 5 * time.Second,
			MaxBytes:     8 << 20,
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("appId", d.AppID)
	v.SetDefault("listener.component", d.Listener.Component)
	v.SetDefault("listener.enabledListeners", d.Listener.EnabledListeners)
	v.SetDefault("events.snapshotOnChange", d.Events.SnapshotOnChange)
	v.SetDefault("bridge.socketPath", d.Bridge.SocketPath)
	v.SetDefault("bridge.httpAddr", d.Bridge.HTTPAddr)
	v.SetDefault("bridge.allowedOrigins", d.Bridge.AllowedOrigins)
	v.SetDefault("bridge.requireAuth", d.Bridge.RequireAuth)
	v.SetDefault("dbus.callTimeout", d.DBus.CallTimeout)
	v.SetDefault("art.maxSize", d.Art.MaxSize)
	v.SetDefault("art.fetchTimeout", d.Art.FetchTimeout)
	v.SetDefault("art.maxBytes", d.Art.MaxBytes)
	v.SetDefault("log.level", d.Log.Level)
}

// Manager handles loading and saving configuration
type Manager struct {
	configDir  string
	configPath string

	// v belongs to the file watcher, whose goroutine reads and decodes
	// through it. Load and Update read through their own instance.
	v *viper.Viper

	// fileMu orders writes and reads of the config file.
	fileMu sync.Mutex

	mu       sync.RWMutex
	config   *Config
	watchers []func(*Config)
}

// NewManager creates a new configuration manager. Environment variables
// prefixed MEDIASESSIOND_ override file values, e.g.
// MEDIASESSIOND_LISTENER_ENABLEDLISTENERS.
func NewManager(configDir string) *Manager {
	configPath := filepath.Join(configDir, configFileName)

	return &Manager{
		configDir:  configDir,
		configPath: configPath,
		v:          newViper(configPath),
		config:     DefaultConfig(),
	}
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration from disk, writing the defaults first if the
// file does not exist yet.
func (m *Manager) Load() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	m.fileMu.Lock()
	defer m.fileMu.Unlock()

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		if err := m.write(DefaultConfig()); err != nil {
			return err
		}
		log.Infof("Wrote default config to %s", m.configPath)
	}

	return m.reload()
}

// reload reads the file through a fresh viper so it never races the watcher.
// Callers hold fileMu.
func (m *Manager) reload() error {
	v := newViper(m.configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := decode(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()
	return m.write(m.Get())
}

func (m *Manager) write(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Replace the file in one step so the watcher never reads a partial
	// write.
	tmp, err := os.CreateTemp(m.configDir, configFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	cfg.Bridge.AllowedOrigins = append([]string(nil), m.config.Bridge.AllowedOrigins...)
	return &cfg
}

// GetPath returns the config file path
func (m *Manager) GetPath() string {
	return m.configPath
}

// Update replaces the configuration and saves it
func (m *Manager) Update(cfg *Config) error {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()

	if err := m.write(cfg); err != nil {
		return err
	}
	return m.reload()
}

// EnabledListeners returns the granted listener components
func (m *Manager) EnabledListeners() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Listener.EnabledListeners
}

// GrantListener adds this daemon's own component to the enabled listeners
func (m *Manager) GrantListener() error {
	cfg := m.Get()
	own, ok := listener.Unflatten(cfg.Listener.Component)
	if !ok {
		return fmt.Errorf("invalid listener component %q", cfg.Listener.Component)
	}

	var names []string
	if cfg.Listener.EnabledListeners != "" {
		names = strings.Split(cfg.Listener.EnabledListeners, ":")
	}
	for _, name := range names {
		if cn, ok := listener.Unflatten(name); ok && cn == own {
			return nil // Already granted
		}
	}

	names = append(names, own.ShortString())
	cfg.Listener.EnabledListeners = strings.Join(names, ":")
	return m.Update(cfg)
}

// RevokeListener removes every component belonging to the app id
func (m *Manager) RevokeListener() error {
	cfg := m.Get()

	kept := make([]string, 0)
	for _, name := range strings.Split(cfg.Listener.EnabledListeners, ":") {
		if name == "" {
			continue
		}
		if cn, ok := listener.Unflatten(name); ok && cn.Package == cfg.AppID {
			continue
		}
		kept = append(kept, name)
	}
	cfg.Listener.EnabledListeners = strings.Join(kept, ":")
	return m.Update(cfg)
}

// Watch reloads the configuration whenever the file changes and passes the
// new value to fn.
func (m *Manager) Watch(fn func(*Config)) {
	m.mu.Lock()
	first := len(m.watchers) == 0
	m.watchers = append(m.watchers, fn)
	m.mu.Unlock()

	if !first {
		return
	}

	m.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(m.v)
		if err != nil {
			log.Warningf("Ignoring config change: %v", err)
			return
		}

		m.mu.Lock()
		m.config = cfg
		watchers := append([](func(*Config))(nil), m.watchers...)
		m.mu.Unlock()

		log.Infof("Config reloaded after %s", e.Op)
		for _, w := range watchers {
			w(cfg)
		}
	})
	m.v.WatchConfig()
}
