// Package config loads service configuration from configs/lunchdesk.yaml,
// overridden by LUNCHDESK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const envPrefix = "LUNCHDESK"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Auth     AuthConfig
	Stripe   StripeConfig
	Log      LogConfig
	Ordering OrderingConfig
	Jobs     JobsConfig
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	SettingsTTL time.Duration
	LockTTL     time.Duration
}

type RabbitMQConfig struct {
	// URL empty disables event publishing.
	URL      string
	Exchange string
}

type AuthConfig struct {
	JWTSecret string
	// JWKSURL, when set, verifies tokens against a remote key set instead
	// of the shared secret.
	JWKSURL string
	Issuer  string
}

type StripeConfig struct {
	SecretKey string
	Currency  string
}

type LogConfig struct {
	Level       string
	Format      string
	Development bool
}

type OrderingConfig struct {
	Timezone                 string
	TaxRate                  decimal.Decimal
	DeliveryFeePerRestaurant decimal.Decimal
	// PendingRetentionDays is how long a PENDING_APPROVAL order survives
	// past its delivery date before the expiry job cancels it.
	PendingRetentionDays int
}

type JobsConfig struct {
	BudgetResetCron  string
	ExpireStaleEvery time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.connect_timeout", 5*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.settings_ttl", 5*time.Minute)
	v.SetDefault("redis.lock_ttl", 30*time.Second)

	v.SetDefault("rabbitmq.exchange", "lunchdesk.orders")

	v.SetDefault("stripe.currency", "gbp")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ordering.timezone", "Europe/London")
	v.SetDefault("ordering.tax_rate", "0")
	v.SetDefault("ordering.delivery_fee_per_restaurant", "0")
	v.SetDefault("ordering.pending_retention_days", 1)

	v.SetDefault("jobs.budget_reset_cron", "0 0 * * *")
	v.SetDefault("jobs.expire_stale_every", time.Hour)
}

// Load reads the config file named by LUNCHDESK_CONFIG, or lunchdesk.yaml
// from ./configs. A missing file is not an error; env vars and defaults
// still apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lunchdesk")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	taxRate, err := decimal.NewFromString(v.GetString("ordering.tax_rate"))
	if err != nil {
		return nil, fmt.Errorf("ordering.tax_rate: %w", err)
	}
	fee, err := decimal.NewFromString(v.GetString("ordering.delivery_fee_per_restaurant"))
	if err != nil {
		return nil, fmt.Errorf("ordering.delivery_fee_per_restaurant: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxConns:        v.GetInt32("database.max_conns"),
			MinConns:        v.GetInt32("database.min_conns"),
			MaxConnLifetime: v.GetDuration("database.max_conn_lifetime"),
			ConnectTimeout:  v.GetDuration("database.connect_timeout"),
		},
		Redis: RedisConfig{
			Addr:        v.GetString("redis.addr"),
			Password:    v.GetString("redis.password"),
			DB:          v.GetInt("redis.db"),
			SettingsTTL: v.GetDuration("redis.settings_ttl"),
			LockTTL:     v.GetDuration("redis.lock_ttl"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("rabbitmq.url"),
			Exchange: v.GetString("rabbitmq.exchange"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			JWKSURL:   v.GetString("auth.jwks_url"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Stripe: StripeConfig{
			SecretKey: v.GetString("stripe.secret_key"),
			Currency:  v.GetString("stripe.currency"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Format:      v.GetString("log.format"),
			Development: v.GetBool("log.development"),
		},
		Ordering: OrderingConfig{
			Timezone:                 v.GetString("ordering.timezone"),
			TaxRate:                  taxRate,
			DeliveryFeePerRestaurant: fee,
			PendingRetentionDays:     v.GetInt("ordering.pending_retention_days"),
		},
		Jobs: JobsConfig{
			BudgetResetCron:  v.GetString("jobs.budget_reset_cron"),
			ExpireStaleEvery: v.GetDuration("jobs.expire_stale_every"),
		},
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWKSURL == "" {
		return errors.New("auth.jwt_secret or auth.jwks_url is required")
	}
	if _, err := time.LoadLocation(c.Ordering.Timezone); err != nil {
		return fmt.Errorf("ordering.timezone: %w", err)
	}
	if c.Ordering.TaxRate.IsNegative() || c.Ordering.DeliveryFeePerRestaurant.IsNegative() {
		return errors.New("ordering charges must not be negative")
	}
	return nil
}

// Location returns the configured ordering timezone. Validate has already
// checked it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ordering.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
