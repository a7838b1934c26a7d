package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	SePay    SePayConfig    `mapstructure:"sepay"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
}

// AdminConfig seeds the panel admin account on first boot. Both fields empty
// means no seeding.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"` // debug, release, test
	BaseURL string `mapstructure:"base_url"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// PaymentConfig controls payment intent issuance.
type PaymentConfig struct {
	// IntentTTL is the QR validity window. An intent past this deadline is
	// expired lazily on the next read.
	IntentTTL time.Duration `mapstructure:"intent_ttl"`
	// Destination account shown to the payer when the caller supplies none.
	BankName      string `mapstructure:"bank_name"`
	AccountNumber string `mapstructure:"account_number"`
	AccountName   string `mapstructure:"account_name"`
}

// WebhookConfig controls inbound bank webhook verification and matching.
type WebhookConfig struct {
	// Secret enables HMAC verification of the bank webhook. Empty means
	// verification is DISABLED and every payload is accepted; production
	// deployments must set it.
	Secret     string `mapstructure:"secret"`
	Algorithm  string `mapstructure:"algorithm"`   // sha256 or sha512
	HeaderName string `mapstructure:"header_name"` // header carrying the signature
	// Amount tolerances, in whole currency units. The bank path demands an
	// exact match while the gateway path tolerates subunit rounding. Two
	// independent knobs on purpose.
	BankAmountTolerance    int64 `mapstructure:"bank_amount_tolerance"`
	GatewayAmountTolerance int64 `mapstructure:"gateway_amount_tolerance"`
}

// SePayConfig holds SePay checkout gateway credentials.
type SePayConfig struct {
	MerchantID string `mapstructure:"merchant_id"`
	SecretKey  string `mapstructure:"secret_key"`
	Env        string `mapstructure:"env"` // sandbox or production
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: MPS_ (Marketplace Payment Service).
// Nested keys use underscore: MPS_DATABASE_HOST, MPS_WEBHOOK_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "marketplace_payments")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "marketplace-payments")
	v.SetDefault("payment.intent_ttl", "10m")
	v.SetDefault("payment.bank_name", "VPBank")
	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("payment.account_number", "1105200789")
	v.SetDefault("payment.account_name", "TRAN DINH KHOA")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.algorithm", "sha256")
	v.SetDefault("webhook.header_name", "x-signature")
	v.SetDefault("webhook.bank_amount_tolerance", 0)
	v.SetDefault("webhook.gateway_amount_tolerance", 1)
	v.SetDefault("sepay.merchant_id", "")
	v.SetDefault("sepay.secret_key", "")
	v.SetDefault("sepay.env", "sandbox")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: MPS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("MPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
