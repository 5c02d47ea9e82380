// Package config loads client settings from the environment or a file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	httpclient "github.com/romanperesypkin/http-client"
)

// Config holds the client settings.
// Environment variables are read with a caller supplied prefix, e.g.
// SVC_HTTP_CONNECTION_LIMIT.
type Config struct {
	AppName string `envconfig:"APP_NAME"`

	HTTPConnectionLimit int     `envconfig:"HTTP_CONNECTION_LIMIT" default:"100"`
	HTTPRequestTimeout  Seconds `envconfig:"HTTP_REQUEST_TIMEOUT" default:"30"`

	LogName            string `envconfig:"LOG_NAME" default:"http_client"`
	KeepAlive          bool   `envconfig:"KEEP_ALIVE" default:"false"`
	InsecureSkipVerify bool   `envconfig:"INSECURE_SKIP_VERIFY" default:"false"`
	PropagateErrors    bool   `envconfig:"PROPAGATE_ERRORS" default:"false"`
}

// Keys used in configuration files.
const (
	KeyAppName             = "app_name"
	KeyHTTPConnectionLimit = "http_connection_limit"
	KeyHTTPRequestTimeout  = "http_request_timeout"
	KeyLogName             = "log_name"
	KeyKeepAlive           = "keep_alive"
	KeyInsecureSkipVerify  = "insecure_skip_verify"
	KeyPropagateErrors     = "propagate_errors"
)

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		HTTPConnectionLimit: httpclient.DefaultConnectionLimit,
		HTTPRequestTimeout:  Seconds(httpclient.DefaultRequestTimeout),
		LogName:             httpclient.DefaultLogName,
	}
}

// FromEnv creates a Config by parsing environment variables under prefix
func FromEnv(prefix string) (*Config, error) {
	cfg, err := LoadEnv(prefix)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnv is FromEnv without validation, for callers that apply overrides first.
func LoadEnv(prefix string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	return &cfg, nil
}

// FromFile reads a YAML, JSON or TOML file. When envPrefix is not empty,
// matching environment variables override file values.
func FromFile(path, envPrefix string) (*Config, error) {
	cfg, err := LoadFile(path, envPrefix)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile is FromFile without validation.
func LoadFile(path, envPrefix string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := Default()
	v.SetDefault(KeyHTTPConnectionLimit, defaults.HTTPConnectionLimit)
	v.SetDefault(KeyHTTPRequestTimeout, defaults.HTTPRequestTimeout.String())
	v.SetDefault(KeyLogName, defaults.LogName)
	v.SetDefault(KeyKeepAlive, false)
	v.SetDefault(KeyInsecureSkipVerify, false)
	v.SetDefault(KeyPropagateErrors, false)

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
		// AutomaticEnv only covers keys viper already knows about.
		_ = v.BindEnv(KeyAppName)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	timeout, err := ParseSeconds(v.GetString(KeyHTTPRequestTimeout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KeyHTTPRequestTimeout, err)
	}

	cfg := Config{
		AppName:             v.GetString(KeyAppName),
		HTTPConnectionLimit: v.GetInt(KeyHTTPConnectionLimit),
		HTTPRequestTimeout:  Seconds(timeout),
		LogName:             v.GetString(KeyLogName),
		KeepAlive:           v.GetBool(KeyKeepAlive),
		InsecureSkipVerify:  v.GetBool(KeyInsecureSkipVerify),
		PropagateErrors:     v.GetBool(KeyPropagateErrors),
	}

	return &cfg, nil
}

// Validate checks the input constraints of the client.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.AppName) == "" {
		errs = append(errs, errors.New("app name must not be empty"))
	}
	if c.HTTPConnectionLimit <= 0 {
		errs = append(errs, fmt.Errorf("http connection limit must be positive, got %d", c.HTTPConnectionLimit))
	}
	if c.HTTPRequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http request timeout must be positive, got %s", c.HTTPRequestTimeout.Duration()))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ClientConfig returns the two core knobs.
func (c *Config) ClientConfig() httpclient.ClientConfig {
	return httpclient.ClientConfig{
		ConnectionLimit: c.HTTPConnectionLimit,
		RequestTimeout:  c.HTTPRequestTimeout.Duration(),
	}
}

// Options converts the settings into client options.
func (c *Config) Options() []httpclient.Option {
	opts := []httpclient.Option{
		httpclient.WithConfig(c.ClientConfig()),
		httpclient.WithKeepAlive(c.KeepAlive),
		httpclient.WithInsecureSkipVerify(c.InsecureSkipVerify),
	}
	if c.LogName != "" {
		opts = append(opts, httpclient.WithLogName(c.LogName))
	}
	if c.PropagateErrors {
		opts = append(opts, httpclient.WithErrorMode(httpclient.ErrorModePropagate))
	}
	return opts
}

// NewClient builds a client from the settings plus any extra options.
func (c *Config) NewClient(extra ...httpclient.Option) (*httpclient.Client, error) {
	return httpclient.New(c.AppName, append(c.Options(), extra...)...)
}
