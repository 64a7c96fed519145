package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider/adapters/strapi"
)

// Config contains the configuration of the ra-strapi CLI.
//
// Example configuration (HCL):
//
//	log_level = "info"
//
//	backend {
//	  base_url        = "http://localhost:1337/api"
//	  dialect         = "modern"
//	  timeout         = "30s"
//	  count_endpoint  = "count"
//	  native_get_many = true
//	  media_fields    = ["cover"]
//	}
//
//	auth {
//	  identifier = "admin@example.com"
//	  password   = "..."
//	}
type Config struct {
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `hcl:"log_level,optional"`

	Backend *Backend `hcl:"backend,block"`

	Auth *Auth `hcl:"auth,block"`
}

// Backend configures the Strapi API.
type Backend struct {
	BaseURL       string   `hcl:"base_url"`
	Dialect       string   `hcl:"dialect,optional"`
	Timeout       string   `hcl:"timeout,optional"`
	TLSVerify     *bool    `hcl:"tls_verify,optional"`
	CountEndpoint string   `hcl:"count_endpoint,optional"`
	NativeGetMany bool     `hcl:"native_get_many,optional"`
	MediaFields   []string `hcl:"media_fields,optional"`
}

// Auth configures authentication. Either a pre-issued API token or local
// login credentials may be given; the token wins when both are set.
type Auth struct {
	Token      string `hcl:"token,optional"`
	Identifier string `hcl:"identifier,optional"`
	Password   string `hcl:"password,optional"`
}

// Environment variables that override file settings.
const (
	EnvBaseURL  = "STRAPI_URL"
	EnvToken    = "STRAPI_TOKEN"
	EnvPassword = "STRAPI_PASSWORD"
)

// NewConfig parses an HCL configuration file. An empty path yields a config
// built from the environment alone.
func NewConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvBaseURL); ok && v != "" {
		if c.Backend == nil {
			c.Backend = &Backend{}
		}
		c.Backend.BaseURL = v
	}
	if v, ok := os.LookupEnv(EnvToken); ok && v != "" {
		if c.Auth == nil {
			c.Auth = &Auth{}
		}
		c.Auth.Token = v
	}
	if v, ok := os.LookupEnv(EnvPassword); ok && v != "" && c.Auth != nil {
		c.Auth.Password = v
	}
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.LogLevel != "" && hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}

	if c.Backend == nil {
		result = multierror.Append(result, fmt.Errorf("backend block is required"))
	} else {
		if c.Backend.BaseURL == "" {
			result = multierror.Append(result, fmt.Errorf("backend.base_url is required"))
		}
		if _, err := strapi.DialectByName(c.Backend.Dialect); err != nil {
			result = multierror.Append(result, fmt.Errorf("backend.dialect: %w", err))
		}
		if c.Backend.Timeout != "" {
			if d, err := time.ParseDuration(c.Backend.Timeout); err != nil {
				result = multierror.Append(result, fmt.Errorf("backend.timeout: %w", err))
			} else if d < 0 {
				result = multierror.Append(result, fmt.Errorf("backend.timeout must not be negative"))
			}
		}
	}

	if c.Auth != nil && c.Auth.Token == "" {
		if c.Auth.Identifier == "" {
			result = multierror.Append(result, fmt.Errorf("auth.identifier is required without auth.token"))
		}
		if c.Auth.Password == "" {
			result = multierror.Append(result, fmt.Errorf("auth.password is required without auth.token"))
		}
	}

	return result.ErrorOrNil()
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() hclog.Level {
	if c.LogLevel == "" {
		return hclog.Info
	}
	return hclog.LevelFromString(c.LogLevel)
}

// StrapiConfig converts the backend block into a provider configuration.
func (c *Config) StrapiConfig(logger hclog.Logger) (*strapi.Config, error) {
	if c.Backend == nil {
		return nil, fmt.Errorf("backend block is required")
	}

	cfg := strapi.DefaultConfig()
	cfg.BaseURL = c.Backend.BaseURL
	if c.Backend.Dialect != "" {
		cfg.Dialect = c.Backend.Dialect
	}
	if c.Backend.Timeout != "" {
		d, err := time.ParseDuration(c.Backend.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid backend timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if c.Backend.TLSVerify != nil {
		cfg.TLSVerify = c.Backend.TLSVerify
	}
	cfg.CountPath = c.Backend.CountEndpoint
	cfg.NativeGetMany = c.Backend.NativeGetMany
	cfg.MediaFields = c.Backend.MediaFields
	cfg.Logger = logger

	return cfg, nil
}
