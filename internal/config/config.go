package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	RateLimit    RateLimitConfig    `yaml:"ratelimit"`
	Workflow     WorkflowConfig     `yaml:"workflow"`
	Verification VerificationConfig `yaml:"verification"`
	Account      AccountConfig      `yaml:"account"`
	Notification NotificationConfig `yaml:"notification"`
	Storage      StorageConfig      `yaml:"storage"`
	Poller       PollerConfig       `yaml:"poller"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
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

// WorkflowConfig points at the step table and tunes the engine.
type WorkflowConfig struct {
	DefinitionPath string        `yaml:"definitionPath"`
	StepRetries    int           `yaml:"stepRetries"`
	RetryBackoff   time.Duration `yaml:"retryBackoff"`
}

// VerificationConfig drives the mock KYC and address providers.
type VerificationConfig struct {
	KycSuccessRate     float64       `yaml:"kycSuccessRate"`
	AddressSuccessRate float64       `yaml:"addressSuccessRate"`
	Latency            time.Duration `yaml:"latency"`
	Seed               int64         `yaml:"seed"`
}

type AccountConfig struct {
	CountryCode    string `yaml:"countryCode"`
	BankCode       string `yaml:"bankCode"`
	OpeningBalance string `yaml:"openingBalance"`
}

// Opening parses OpeningBalance.
func (a AccountConfig) Opening() (decimal.Decimal, error) {
	return decimal.NewFromString(a.OpeningBalance)
}

type NotificationConfig struct {
	FromName       string        `yaml:"fromName"`
	FromAddress    string        `yaml:"fromAddress"`
	SendGridAPIKey string        `yaml:"sendgridApiKey"`
	SmsGatewayURL  string        `yaml:"smsGatewayUrl"`
	SmsAPIKey      string        `yaml:"smsApiKey"`
	SmsFrom        string        `yaml:"smsFrom"`
	Timeout        time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Dir            string `yaml:"dir"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
}

type PollerConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batchSize"`
}

// Default returns the configuration used for every value the file leaves out.
func Default() Config {
	return Config{
		Server:    ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		Log:       LogConfig{Level: "info"},
		Postgres:  PostgresConfig{DSN: "host=localhost user=onboarding dbname=onboarding port=5432 sslmode=disable"},
		Redis:     RedisConfig{Addr: "localhost:6379"},
		Kafka:     KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "onboarding-events"},
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40},
		Workflow:  WorkflowConfig{StepRetries: 2, RetryBackoff: 500 * time.Millisecond},
		Verification: VerificationConfig{
			KycSuccessRate:     0.9,
			AddressSuccessRate: 0.95,
			Latency:            200 * time.Millisecond,
		},
		Account: AccountConfig{CountryCode: "NL", BankCode: "BANK", OpeningBalance: "0.00"},
		Notification: NotificationConfig{
			FromName:    "Bank ABC",
			FromAddress: "no-reply@bankabc.example",
			SmsFrom:     "BankABC",
			Timeout:     5 * time.Second,
		},
		Storage: StorageConfig{Dir: "uploads", MaxUploadBytes: 10 << 20},
		Poller:  PollerConfig{Interval: time.Second, BatchSize: 100},
	}
}

// Load reads yaml file over the defaults, after loading a .env file when one exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		cfg.Notification.SendGridAPIKey = key
	}
	if key := os.Getenv("SMS_API_KEY"); key != "" {
		cfg.Notification.SmsAPIKey = key
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be positive"))
	}
	for name, rate := range map[string]float64{
		"verification.kycSuccessRate":     c.Verification.KycSuccessRate,
		"verification.addressSuccessRate": c.Verification.AddressSuccessRate,
	} {
		if rate < 0 || rate > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1]", name))
		}
	}
	if _, err := c.Account.Opening(); err != nil {
		errs = append(errs, fmt.Errorf("account.openingBalance: %w", err))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("storage.maxUploadBytes must be positive"))
	}
	if c.Workflow.StepRetries < 0 {
		errs = append(errs, fmt.Errorf("workflow.stepRetries must not be negative"))
	}
	return errors.Join(errs...)
}
