package logger

import (
	"os"
	"strconv"
	"strings"
)

// NewLoggerFromEnv creates a logger configured only from the environment.
func NewLoggerFromEnv() (Logger, error) {
	return NewZapLogger(ApplyEnv(baseConfigFromEnv()))
}

// NewLoggerWithComponent creates a logger with a component field pre-set
func NewLoggerWithComponent(cfg LoggerConfig, component string) (Logger, error) {
	logger, err := NewZapLogger(cfg)
	if err != nil {
		return nil, err
	}

	return logger.With(Field{Key: "component", Value: component}), nil
}

// baseConfigFromEnv picks the development or production preset from LSI_ENV.
// Anything other than "production" is treated as development.
func baseConfigFromEnv() LoggerConfig {
	if strings.ToLower(os.Getenv("LSI_ENV")) == "production" {
		return DefaultConfig()
	}
	return DevelopmentConfig()
}

// ApplyEnv overrides cfg with any LSI_LOG_* variables that are set.
func ApplyEnv(cfg LoggerConfig) LoggerConfig {
	if level := os.Getenv("LSI_LOG_LEVEL"); level != "" {
		cfg.Level = level
	}

	if format := os.Getenv("LSI_LOG_FORMAT"); format != "" {
		cfg.Format = format
	}

	if sampling := os.Getenv("LSI_LOG_SAMPLING"); sampling != "" {
		cfg.EnableSampling = strings.ToLower(sampling) == "true"
	}

	if initial := os.Getenv("LSI_LOG_SAMPLE_INITIAL"); initial != "" {
		if val, err := strconv.Atoi(initial); err == nil {
			cfg.SampleInitial = val
		}
	}

	if thereafter := os.Getenv("LSI_LOG_SAMPLE_THEREAFTER"); thereafter != "" {
		if val, err := strconv.Atoi(thereafter); err == nil {
			cfg.SampleThereafter = val
		}
	}

	if dev := os.Getenv("LSI_LOG_DEVELOPMENT"); dev != "" {
		cfg.Development = strings.ToLower(dev) == "true"
	}

	return cfg
}
