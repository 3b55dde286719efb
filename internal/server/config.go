// Package server provides configuration helpers that define runtime defaults,
// environment loading, and validation for the chat relay service.
package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultPort            = "3000"
	defaultMaxMessageSize  = 64 * 1024
	defaultSendBuffer      = 256
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "info"
)

// Config holds the server configuration settings.
type Config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE" envDefault:"65536"`
	SendBuffer      int           `env:"SEND_BUFFER" envDefault:"256"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func defaultConfig() Config {
	return Config{
		Port:            defaultPort,
		AllowedOrigins:  []string{"*"},
		MaxMessageSize:  defaultMaxMessageSize,
		SendBuffer:      defaultSendBuffer,
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        defaultLogLevel,
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads the given dotenv files (".env" when none are named),
// then the process environment. Missing dotenv files are not an error and
// variables already set in the environment win over file values.
// Out-of-range values fall back to their defaults.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg = sanitizeConfig(cfg)
	return &cfg, nil
}

func sanitizeConfig(cfg Config) Config {
	cfg.Port = sanitizePort(cfg.Port)

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = defaultLogLevel
	}

	return cfg
}

// sanitizePort accepts a bare port ("3000") or a listen address
// (":3000", "127.0.0.1:3000").
func sanitizePort(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return defaultPort
	}
	if strings.Contains(port, ":") {
		_, p, err := net.SplitHostPort(port)
		if err != nil || !validPort(p) {
			return defaultPort
		}
		return port
	}
	if !validPort(port) {
		return defaultPort
	}
	return port
}

func validPort(port string) bool {
	n, err := strconv.Atoi(port)
	return err == nil && n >= 0 && n <= 65535
}

// Addr returns the listen address for the configured port.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
