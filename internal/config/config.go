// Package config provides YAML-based configuration loading for garagedesk.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level garagedesk configuration, loaded from garagedesk.yaml.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
	JobCard JobCardConfig `yaml:"jobcard"`
	Camera  CameraConfig  `yaml:"camera"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// APIConfig holds connection settings for the remote garage API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig selects where the signed-in identity is persisted.
type SessionConfig struct {
	Driver string      `yaml:"driver"` // sqlite, mysql, memory
	Path   string      `yaml:"path"`   // sqlite file
	MySQL  MySQLConfig `yaml:"mysql"`
}

// MySQLConfig holds connection settings for a shared MySQL session store.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// JobCardConfig holds job-card form behavior.
type JobCardConfig struct {
	ShowPrices    bool          `yaml:"show_prices"`
	RedirectDelay time.Duration `yaml:"redirect_delay"`
}

// CameraConfig configures the still-image device used for captures.
type CameraConfig struct {
	RearURL  string        `yaml:"rear_url"`
	FrontURL string        `yaml:"front_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NotifyConfig configures workshop notifications for saved job cards.
type NotifyConfig struct {
	Slack   ChatConfig `yaml:"slack"`
	Discord ChatConfig `yaml:"discord"`
}

// ChatConfig holds a bot token and the channel to post to.
type ChatConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether both token and channel are set.
func (c ChatConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.Session.Driver == "" {
		c.Session.Driver = "sqlite"
	}
	if c.Session.Driver == "sqlite" && c.Session.Path == "" {
		c.Session.Path = os.ExpandEnv("${HOME}/.garagedesk/session.db")
	}
	if c.Session.Driver == "mysql" {
		if c.Session.MySQL.Host == "" {
			c.Session.MySQL.Host = "127.0.0.1"
		}
		if c.Session.MySQL.Port == 0 {
			c.Session.MySQL.Port = 3306
		}
		if c.Session.MySQL.User == "" {
			c.Session.MySQL.User = "root"
		}
		if c.Session.MySQL.Database == "" {
			c.Session.MySQL.Database = "garagedesk"
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.JobCard.RedirectDelay == 0 {
		c.JobCard.RedirectDelay = 1500 * time.Millisecond
	}
	if c.Camera.Timeout == 0 {
		c.Camera.Timeout = 10 * time.Second
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	}
	if c.API.Timeout < 0 {
		errs = append(errs, "api.timeout must not be negative")
	}
	switch c.Session.Driver {
	case "sqlite", "mysql", "memory":
	default:
		errs = append(errs, fmt.Sprintf("session.driver %q must be one of sqlite, mysql, memory", c.Session.Driver))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}
	if c.JobCard.RedirectDelay < 0 {
		errs = append(errs, "jobcard.redirect_delay must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
