// Package config loads application configuration from environment variables
// and an optional YAML pipeline file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// database: a file path (sqlite) or a postgres:// URL
	DatabaseURL string `validate:"required"`

	// nats (optional, empty disables event publishing)
	NatsURL string

	// server
	HTTPPort int `validate:"gt=0,lte=65535"`

	// pipeline
	PipelineFile string

	// ingestion
	IngestQueueSize int `validate:"gt=0"`

	// delivery
	DeliveryBackoffSec int `validate:"gt=0"`
	SummaryWindowHours int `validate:"gt=0"`

	// logging
	LogLevel string
	LogFile  string
}

// Pipeline describes one monitor instance: the name, the monitored groups
// and an optional initial delivery target.
type Pipeline struct {
	Name    string   `yaml:"name"`
	Groups  []string `yaml:"groups"`
	Webhook *Webhook `yaml:"webhook"`
}

// Webhook is the initial delivery target of a pipeline file.
type Webhook struct {
	URL             string `yaml:"url"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", "./groupwatch.db"),
		NatsURL:            getEnv("NATS_URL", ""),
		HTTPPort:           getEnvInt("HTTP_PORT", 8000),
		PipelineFile:       getEnv("PIPELINE_FILE", ""),
		IngestQueueSize:    getEnvInt("INGEST_QUEUE_SIZE", 256),
		DeliveryBackoffSec: getEnvInt("DELIVERY_BACKOFF_SECONDS", 60),
		SummaryWindowHours: getEnvInt("SUMMARY_WINDOW_HOURS", 1),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", ""),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadPipeline reads a pipeline definition from a YAML file.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}

	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pipeline file: %w", err)
	}

	if p.Name == "" {
		p.Name = "default"
	}

	return &p, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
