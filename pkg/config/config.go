package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
)

// Config captures module-level configuration knobs. Feature packages (httpapi,
// transport, reminders, client) pull from these nested structs.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http" json:"http"`
	Database  DatabaseConfig  `mapstructure:"database" json:"database"`
	Redis     RedisConfig     `mapstructure:"redis" json:"redis"`
	Channels  ChannelsConfig  `mapstructure:"channels" json:"channels"`
	Auth      AuthConfig      `mapstructure:"auth" json:"auth"`
	Reminders RemindersConfig `mapstructure:"reminders" json:"reminders"`
	Client    ClientConfig    `mapstructure:"client" json:"client"`
}

// HTTPConfig scopes the query and broadcasting API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" json:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

// DatabaseConfig selects the notification store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "memory".
	Driver      string `mapstructure:"driver" json:"driver"`
	DSN         string `mapstructure:"dsn" json:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate" json:"auto_migrate"`
}

// RedisConfig enables the Redis pub/sub transport. When disabled the in-process
// hub is used.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
	Prefix   string `mapstructure:"prefix" json:"prefix"`
}

// ChannelsConfig names the fixed topics.
type ChannelsConfig struct {
	PublicTopic string `mapstructure:"public_topic" json:"public_topic"`
	AdminTopic  string `mapstructure:"admin_topic" json:"admin_topic"`
}

// AuthConfig holds the HS256 secret shared by bearer tokens and channel grants.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret" json:"secret"`
	GrantTTL time.Duration `mapstructure:"grant_ttl" json:"grant_ttl"`
}

// RemindersConfig drives the reminder scheduler.
type RemindersConfig struct {
	Enabled   bool          `mapstructure:"enabled" json:"enabled"`
	Interval  time.Duration `mapstructure:"interval" json:"interval"`
	Lead      time.Duration `mapstructure:"lead" json:"lead"`
	BatchSize int           `mapstructure:"batch_size" json:"batch_size"`
}

// ClientConfig is used by the query service HTTP client.
type ClientConfig struct {
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	LatestLimit int           `mapstructure:"latest_limit" json:"latest_limit"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "file:clinic.db?cache=shared",
			AutoMigrate: true,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "clinic:",
		},
		Channels: ChannelsConfig{
			PublicTopic: "appointments",
			AdminTopic:  "admin.appointments",
		},
		Auth: AuthConfig{
			GrantTTL: 5 * time.Minute,
		},
		Reminders: RemindersConfig{
			Enabled:   true,
			Interval:  5 * time.Minute,
			Lead:      24 * time.Hour,
			BatchSize: 100,
		},
		Client: ClientConfig{
			BaseURL:     "http://localhost:8080",
			Timeout:     10 * time.Second,
			LatestLimit: 10,
		},
	}
}

// Validate ensures required fields are present and sane.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret is required")
	}
	if c.Auth.GrantTTL <= 0 {
		return fmt.Errorf("auth.grant_ttl must be > 0")
	}
	switch c.Database.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		return errors.New("database.dsn is required for sqlite")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	if !strings.HasPrefix(c.Channels.AdminTopic, "admin.") {
		return fmt.Errorf("channels.admin_topic must start with \"admin.\"")
	}
	if strings.HasPrefix(c.Channels.PublicTopic, "admin.") || strings.HasPrefix(c.Channels.PublicTopic, "user.") {
		return fmt.Errorf("channels.public_topic must not use a reserved prefix")
	}
	if c.Reminders.Interval <= 0 || c.Reminders.Lead <= 0 {
		return fmt.Errorf("reminders.interval and reminders.lead must be > 0")
	}
	if c.Reminders.BatchSize < 0 {
		return fmt.Errorf("reminders.batch_size must be >= 0")
	}
	if c.Client.Timeout < 0 {
		return fmt.Errorf("client.timeout must be >= 0")
	}
	return nil
}

// Load decodes arbitrary input (struct, map, cfg struct) using cfgx helpers.
// Inputs cfgx leaves empty are decoded with a JSON fallback.
func Load(input any, opts ...LoadOption) (Config, error) {
	settings := loadOptions{}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := cfgx.Build(input, settings.buildOpts...)
	if err != nil {
		return Config{}, err
	}

	if isZero(cfg) {
		if err := decodeFallback(input, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg = cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadOption lets callers amend cfgx build options.
type LoadOption func(*loadOptions)

type loadOptions struct {
	buildOpts []cfgx.Option[Config]
}

// WithBuildOptions forwards cfgx options (duration hooks, preprocessors, etc.).
func WithBuildOptions(opts ...cfgx.Option[Config]) LoadOption {
	return func(lo *loadOptions) {
		lo.buildOpts = append(lo.buildOpts, opts...)
	}
}

func (c Config) withDefaults() Config {
	defaults := Defaults()

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = defaults.HTTP.Addr
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = defaults.HTTP.ReadTimeout
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = defaults.HTTP.ShutdownTimeout
	}
	if c.Database.Driver == "" {
		c.Database = defaults.Database
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaults.Redis.Addr
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = defaults.Redis.Prefix
	}
	if c.Channels.PublicTopic == "" {
		c.Channels.PublicTopic = defaults.Channels.PublicTopic
	}
	if c.Channels.AdminTopic == "" {
		c.Channels.AdminTopic = defaults.Channels.AdminTopic
	}
	if c.Auth.GrantTTL == 0 {
		c.Auth.GrantTTL = defaults.Auth.GrantTTL
	}
	if c.Reminders.Interval == 0 {
		c.Reminders.Interval = defaults.Reminders.Interval
	}
	if c.Reminders.Lead == 0 {
		c.Reminders.Lead = defaults.Reminders.Lead
	}
	if c.Reminders.BatchSize == 0 {
		c.Reminders.BatchSize = defaults.Reminders.BatchSize
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = defaults.Client.BaseURL
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = defaults.Client.Timeout
	}
	if c.Client.LatestLimit == 0 {
		c.Client.LatestLimit = defaults.Client.LatestLimit
	}
	return c
}

func isZero(cfg Config) bool {
	return reflect.DeepEqual(cfg, Config{})
}

func decodeFallback(input any, cfg *Config) error {
	switch v := input.(type) {
	case nil:
		return nil
	case Config:
		*cfg = v
		return nil
	case *Config:
		if v != nil {
			*cfg = *v
		}
		return nil
	case map[string]any:
		return decodeMap(v, cfg)
	default:
		return fmt.Errorf("unsupported config input type: %T", input)
	}
}

func decodeMap(input map[string]any, cfg *Config) error {
	if input == nil {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, cfg)
}
