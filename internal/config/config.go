package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"carrental-backend/internal/pricing"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	JWT         JWTConfig         `yaml:"jwt"`
	Log         LogConfig         `yaml:"log"`
	Pricing     PricingConfig     `yaml:"pricing"`
	Reservation ReservationConfig `yaml:"reservation"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Redis       RedisConfig       `yaml:"redis"`
	AMQP        AMQPConfig        `yaml:"amqp"`
	SendGrid    SendGridConfig    `yaml:"sendgrid"`
	Payments    PaymentsConfig    `yaml:"payments"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings. Driver "memory"
// runs without a database, for local development.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// PricingConfig holds the named pricing constants.
type PricingConfig struct {
	PremiumMultiplier      string            `yaml:"premium_multiplier"`
	DepositRatio           string            `yaml:"deposit_ratio"`
	EarlyReturnPolicy      string            `yaml:"early_return_policy"`
	EarlyReturnRefundRatio string            `yaml:"early_return_refund_ratio"`
	Currency               string            `yaml:"currency"`
	Equipment              []EquipmentConfig `yaml:"equipment"`
}

// EquipmentConfig is one catalog entry. A non-empty list replaces the
// default catalog.
type EquipmentConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	PricePerDay string `yaml:"price_per_day"`
	OneOff      bool   `yaml:"one_off"`
}

type ReservationConfig struct {
	HoldWindowMinutes int `yaml:"hold_window_minutes"`
	ExpireBatchSize   int `yaml:"expire_batch_size"`
	ReconcileBatch    int `yaml:"reconcile_batch_size"`
}

// SchedulerConfig contains cron specs with seconds
type SchedulerConfig struct {
	ExpireHolds       string `yaml:"expire_holds"`
	ReconcilePayments string `yaml:"reconcile_payments"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AMQPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type SendGridConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

type PaymentsConfig struct {
	QRSize int `yaml:"qr_size"`
}

// Load reads configuration from a YAML file, applies environment overrides
// and validates the result.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) overrideWithEnv() {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setInt := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				*dst = n
			}
		}
	}

	setString("SERVER_HOST", &c.Server.Host)
	setInt("SERVER_PORT", &c.Server.Port)

	setString("DB_DRIVER", &c.Database.Driver)
	setString("DB_HOST", &c.Database.Host)
	setInt("DB_PORT", &c.Database.Port)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("DB_NAME", &c.Database.Database)
	setString("DB_SSL_MODE", &c.Database.SSLMode)

	setString("JWT_SECRET", &c.JWT.Secret)

	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)

	setString("PRICING_PREMIUM_MULTIPLIER", &c.Pricing.PremiumMultiplier)
	setString("PRICING_DEPOSIT_RATIO", &c.Pricing.DepositRatio)
	setString("PRICING_EARLY_RETURN_POLICY", &c.Pricing.EarlyReturnPolicy)
	setInt("RESERVATION_HOLD_WINDOW_MINUTES", &c.Reservation.HoldWindowMinutes)

	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("AMQP_URL", &c.AMQP.URL)
	setString("SENDGRID_API_KEY", &c.SendGrid.APIKey)
}

// Validate checks required settings and fills defaults.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 15
	}

	switch c.Database.Driver {
	case "":
		c.Database.Driver = "postgres"
		fallthrough
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver: %s", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if _, err := c.Pricing.Policy(); err != nil {
		return fmt.Errorf("pricing: %w", err)
	}
	if c.Pricing.Currency == "" {
		c.Pricing.Currency = "MXN"
	}

	if c.Reservation.HoldWindowMinutes == 0 {
		c.Reservation.HoldWindowMinutes = 30
	}
	if c.Reservation.HoldWindowMinutes < 0 {
		return fmt.Errorf("hold window must be positive")
	}
	if c.Reservation.ExpireBatchSize == 0 {
		c.Reservation.ExpireBatchSize = 100
	}
	if c.Reservation.ReconcileBatch == 0 {
		c.Reservation.ReconcileBatch = 100
	}
	if c.Reservation.ExpireBatchSize < 1 || c.Reservation.ReconcileBatch < 1 {
		return fmt.Errorf("reservation batch sizes must be at least 1")
	}

	if c.Scheduler.ExpireHolds == "" {
		c.Scheduler.ExpireHolds = "0 * * * * *" // every minute
	}
	if c.Scheduler.ReconcilePayments == "" {
		c.Scheduler.ReconcilePayments = "0 */5 * * * *" // every 5 minutes
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}
	if c.AMQP.Enabled {
		if c.AMQP.URL == "" {
			return fmt.Errorf("amqp url is required when amqp is enabled")
		}
		if c.AMQP.Exchange == "" {
			c.AMQP.Exchange = "rental.events"
		}
	}
	if c.SendGrid.Enabled {
		if c.SendGrid.APIKey == "" || c.SendGrid.FromEmail == "" {
			return fmt.Errorf("sendgrid api key and sender are required when sendgrid is enabled")
		}
		if c.SendGrid.FromName == "" {
			c.SendGrid.FromName = "Car Rental"
		}
	}
	if c.Payments.QRSize == 0 {
		c.Payments.QRSize = 256
	}
	return nil
}

// Policy converts the pricing section into a validated pricing policy.
// Empty values keep the defaults.
func (p PricingConfig) Policy() (pricing.Policy, error) {
	policy := pricing.DefaultPolicy()

	parse := func(name, raw string, dst *decimal.Decimal) error {
		if raw == "" {
			return nil
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = v
		return nil
	}
	if err := parse("premium_multiplier", p.PremiumMultiplier, &policy.PremiumMultiplier); err != nil {
		return policy, err
	}
	if err := parse("deposit_ratio", p.DepositRatio, &policy.DepositRatio); err != nil {
		return policy, err
	}
	if err := parse("early_return_refund_ratio", p.EarlyReturnRefundRatio, &policy.EarlyReturnRefundRatio); err != nil {
		return policy, err
	}
	if p.EarlyReturnPolicy != "" {
		er, ok := pricing.ParseEarlyReturnPolicy(p.EarlyReturnPolicy)
		if !ok {
			return policy, fmt.Errorf("unknown early return policy %q", p.EarlyReturnPolicy)
		}
		policy.EarlyReturn = er
	}
	if len(p.Equipment) > 0 {
		catalog := make(pricing.Catalog, len(p.Equipment))
		for _, e := range p.Equipment {
			if _, dup := catalog[e.ID]; dup {
				return policy, fmt.Errorf("equipment %q is listed more than once", e.ID)
			}
			item := pricing.Equipment{ID: e.ID, Name: e.Name, OneOff: e.OneOff}
			if err := parse("equipment "+strconv.Quote(e.ID)+" price_per_day", e.PricePerDay, &item.PricePerDay); err != nil {
				return policy, err
			}
			catalog[e.ID] = item
		}
		policy.Equipment = catalog
	}
	return policy, policy.Validate()
}

func (c *Config) HoldWindow() time.Duration {
	return time.Duration(c.Reservation.HoldWindowMinutes) * time.Minute
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
