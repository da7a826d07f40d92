// Package config loads the control-plane settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/neomorfeo/controlplane/internal/adapter/otel"
)

// Event relay sinks.
const (
	RelayRiver = "river"
	RelayKafka = "kafka"
	RelayLog   = "log"
)

type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	DatabasePath    string        `env:"DATABASE_PATH" envDefault:"controlplane.db"`
	JWTSecret       string        `env:"JWT_SECRET,notEmpty,unset"`
	WebhookSecret   string        `env:"WEBHOOK_SECRET,unset"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// EventRelay picks where every published event is forwarded: a River job
	// (whose worker writes to Kafka when brokers are set), Kafka directly, or
	// the log only.
	EventRelay   string   `env:"EVENT_RELAY" envDefault:"river"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"controlplane.events"`

	AllowUngovernedKinds bool `env:"WORKFLOW_ALLOW_UNGOVERNED"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text"`

	Telemetry otel.Config
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{RelayRiver, RelayKafka, RelayLog}, c.EventRelay) {
		errs = append(errs, fmt.Errorf("EVENT_RELAY must be river, kafka or log, got %q", c.EventRelay))
	}
	if c.EventRelay == RelayKafka && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("EVENT_RELAY=kafka requires KAFKA_BROKERS"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Logger builds the process logger described by LOG_LEVEL and LOG_FORMAT.
func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
