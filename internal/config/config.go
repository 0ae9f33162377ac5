package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseDSN               string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL               string `env:"RABBITMQ_URL,required=true"`
	RedisURL                  string `env:"REDIS_URL,required=true"`
	PaymentWebhookURL         string `env:"PAYMENT_WEBHOOK_URL"`
	APIPort                   int    `env:"API_PORT,default=8080"`
	WorkerMetricsPort         int    `env:"WORKER_METRICS_PORT,default=9091"`
	LogLevel                  string `env:"LOG_LEVEL,default=info"`
	BulkWorkerConcurrency     int    `env:"BULK_WORKER_CONCURRENCY,default=8"`
	AuditWorkerConcurrency    int    `env:"AUDIT_WORKER_CONCURRENCY,default=4"`
	AuditSinkTimeoutMS        int    `env:"AUDIT_SINK_TIMEOUT_MS,default=2000"`
	AuditBufferSize           int    `env:"AUDIT_BUFFER_SIZE,default=1024"`
	CommissionRate            string `env:"COMMISSION_RATE,default=0.10"`
	TransitionRateLimitPerSec int    `env:"TRANSITION_RATE_LIMIT_PER_SEC,default=20"`
	DenialAlertThreshold      int    `env:"DENIAL_ALERT_THRESHOLD,default=5"`
	DenialWindowSeconds       int    `env:"DENIAL_WINDOW_SECONDS,default=300"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.BulkWorkerConcurrency < 1 {
		return fmt.Errorf("BULK_WORKER_CONCURRENCY must be at least 1, got %d", c.BulkWorkerConcurrency)
	}
	if c.AuditWorkerConcurrency < 1 {
		return fmt.Errorf("AUDIT_WORKER_CONCURRENCY must be at least 1, got %d", c.AuditWorkerConcurrency)
	}
	if c.AuditBufferSize < 1 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be at least 1, got %d", c.AuditBufferSize)
	}
	if _, err := c.Commission(); err != nil {
		return err
	}
	return nil
}

// Commission returns the commission rate applied to repair cost on approval.
func (c *Config) Commission() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.CommissionRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid COMMISSION_RATE %q: %w", c.CommissionRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("COMMISSION_RATE must be between 0 and 1, got %s", rate)
	}
	return rate, nil
}

func (c *Config) AuditSinkTimeout() time.Duration {
	return time.Duration(c.AuditSinkTimeoutMS) * time.Millisecond
}

func (c *Config) DenialWindow() time.Duration {
	return time.Duration(c.DenialWindowSeconds) * time.Second
}
