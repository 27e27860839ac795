package config

import (
	"io/ioutil"
	"os"

	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Payment   PaymentConfig   `yaml:"payment"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// PaymentConfig covers the gateway adapter and the commission policy.
// CommissionRate is the platform's current share of a lending fee,
// snapshotted onto each lending record at settlement time.
type PaymentConfig struct {
	GatewayBaseURL    string  `yaml:"gateway_base_url"`
	GatewayKeyID      string  `yaml:"gateway_key_id"`
	GatewaySecret     string  `yaml:"gateway_secret"`
	Currency          string  `yaml:"currency"`
	CommissionRate    float64 `yaml:"commission_rate"`
	PlatformAccountID uint64  `yaml:"platform_account_id"`
	ReceiptPrefix     string  `yaml:"receipt_prefix"`
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override secrets from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if sec := os.Getenv("GATEWAY_SECRET"); sec != "" {
		cfg.Payment.GatewaySecret = sec
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "INR"
	}
	if cfg.Payment.ReceiptPrefix == "" {
		cfg.Payment.ReceiptPrefix = "lend"
	}
	return &cfg, nil
}
