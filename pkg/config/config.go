// Package config loads the server configuration from an optional YAML file
// and the environment
package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the server configuration, read from a YAML file and the environment
type Config struct {
	Debug          bool     `yaml:"debug" env:"DEBUG" env-default:"false"`
	Host           string   `yaml:"host" env:"HOST" env-default:"127.0.0.1"`
	Port           string   `yaml:"port" env:"PORT" env-default:"5000"`
	HTTPPort       string   `yaml:"http-port" env:"HTTP_PORT" env-default:"8080"`
	APIKeys        []string `yaml:"api-keys" env:"API_KEYS" env-separator:","`
	FrontendOrigin string   `yaml:"frontend-origin" env:"FRONTEND_PATH"`
	Clock          Clock    `yaml:"clock"`
	NATS           NATS     `yaml:"nats"`
}

// Clock is the time control applied to every match
type Clock struct {
	Initial         time.Duration `yaml:"initial" env:"CLOCK_INITIAL" env-default:"2m"`
	Increment       time.Duration `yaml:"increment" env:"CLOCK_INCREMENT" env-default:"0s"`
	EnforceFlagFall bool          `yaml:"enforce-flag-fall" env:"CLOCK_ENFORCE_FLAG_FALL" env-default:"true"`
}

// NATS selects where lifecycle events are forwarded. An empty URL disables forwarding.
type NATS struct {
	URL     string `yaml:"url" env:"NATS_URL"`
	Subject string `yaml:"subject" env:"NATS_SUBJECT" env-default:"duel.events"`
}

// Load reads the YAML file at path, when given, and then the environment,
// which takes precedence.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values cleanenv cannot
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: port is required")
	}
	if c.Clock.Initial <= 0 {
		return fmt.Errorf("config: clock.initial must be positive, got %s", c.Clock.Initial)
	}
	if c.Clock.Increment < 0 {
		return fmt.Errorf("config: clock.increment must not be negative, got %s", c.Clock.Increment)
	}
	return nil
}

// TCPAddr is the address of the line protocol listener
func (c *Config) TCPAddr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// HTTPAddr is the address of the HTTP listener, empty when http-port is "off"
func (c *Config) HTTPAddr() string {
	if c.HTTPPort == "" || c.HTTPPort == "off" {
		return ""
	}
	return net.JoinHostPort(c.Host, c.HTTPPort)
}

// Description returns the env variables cleanenv understands, for -help
func Description() string {
	text, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return text
}
