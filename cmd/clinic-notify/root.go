package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-clinic-notifications/pkg/config"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "CLINIC"

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "clinic-notify",
		Short:         "Clinic appointment notifications server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "json", "log format: json or text")

	root.AddCommand(
		newServeCmd(opts),
		newRemindCmd(opts),
		newTokenCmd(opts),
		newFeedCmd(opts),
	)
	return root
}

// loadConfig reads the optional config file, overlays CLINIC_* environment
// variables and validates the result.
func loadConfig(path string) (config.Config, error) {
	v := viper.New()
	setDefaults(v, config.Defaults())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("clinic")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var raw config.Config
	if err := v.Unmarshal(&raw); err != nil {
		return config.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return config.Load(raw)
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(v *viper.Viper, d config.Config) {
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.auto_migrate", d.Database.AutoMigrate)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.prefix", d.Redis.Prefix)

	v.SetDefault("channels.public_topic", d.Channels.PublicTopic)
	v.SetDefault("channels.admin_topic", d.Channels.AdminTopic)

	v.SetDefault("auth.secret", d.Auth.Secret)
	v.SetDefault("auth.grant_ttl", d.Auth.GrantTTL)

	v.SetDefault("reminders.enabled", d.Reminders.Enabled)
	v.SetDefault("reminders.interval", d.Reminders.Interval)
	v.SetDefault("reminders.lead", d.Reminders.Lead)
	v.SetDefault("reminders.batch_size", d.Reminders.BatchSize)

	v.SetDefault("client.base_url", d.Client.BaseURL)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.latest_limit", d.Client.LatestLimit)
}

func newLogger(opts *rootOptions) (logger.Logger, error) {
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return nil, err
	}
	base := logrus.New()
	base.SetLevel(level)
	switch opts.logFormat {
	case "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		base.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger.NewLogrus(base), nil
}
