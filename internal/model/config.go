package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration. The bot token is
// deliberately absent: it is read from the DISCORD_BOT_TOKEN environment
// variable at startup and never written to disk.
type Config struct {
	// DatabasePath is the SQLite database file location.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// Development switches the logger to a human-readable encoder.
	Development bool `mapstructure:"development" yaml:"development"`

	// CommandPrefixes are the accepted prefixes for text commands.
	CommandPrefixes []string `mapstructure:"command_prefixes" yaml:"command_prefixes"`

	Reminder  ReminderConfig  `mapstructure:"reminder" yaml:"reminder"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Provision ProvisionConfig `mapstructure:"provision" yaml:"provision"`

	// HeartbeatInterval controls the periodic liveness log.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
}

// ReminderConfig tunes the periodic reminder scanner.
type ReminderConfig struct {
	// Interval is how often the scanner sweeps for soon-due tasks.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// Window is the look-ahead horizon: tasks due within (now, now+Window]
	// are candidates for their one-time reminder.
	Window time.Duration `mapstructure:"window" yaml:"window"`
}

// NotifyConfig tunes the notification dispatcher.
type NotifyConfig struct {
	// RenameCooldown is the minimum elapsed time between consecutive
	// renames of the same detail thread.
	RenameCooldown time.Duration `mapstructure:"rename_cooldown" yaml:"rename_cooldown"`
}

// ProvisionConfig tunes the channel provisioning command.
type ProvisionConfig struct {
	// MaxPersonalChannels caps how many per-member channels a single
	// provisioning run creates.
	MaxPersonalChannels int `mapstructure:"max_personal_channels" yaml:"max_personal_channels"`

	// CreationDelay is the pause between consecutive channel creations,
	// keeping the run under the platform rate limit.
	CreationDelay time.Duration `mapstructure:"creation_delay" yaml:"creation_delay"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskbot/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "taskbot", "config.yaml")
}

// defaultConfig returns a sensible default configuration.
func defaultConfig() *Config {
	return &Config{
		DatabasePath:    "taskbot.db",
		CommandPrefixes: []string{"!", "！", "/"},
		Reminder: ReminderConfig{
			Interval: 5 * time.Minute,
			Window:   time.Hour,
		},
		Notify: NotifyConfig{
			RenameCooldown: 30 * time.Second,
		},
		Provision: ProvisionConfig{
			MaxPersonalChannels: 10,
			CreationDelay:       300 * time.Millisecond,
		},
		HeartbeatInterval: 5 * time.Minute,
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the default configuration.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("database_path", "taskbot.db")
	v.SetDefault("command_prefixes", []string{"!", "！", "/"})
	v.SetDefault("reminder.interval", 5*time.Minute)
	v.SetDefault("reminder.window", time.Hour)
	v.SetDefault("notify.rename_cooldown", 30*time.Second)
	v.SetDefault("provision.max_personal_channels", 10)
	v.SetDefault("provision.creation_delay", 300*time.Millisecond)
	v.SetDefault("heartbeat_interval", 5*time.Minute)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
