package odoo

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/flemzord/odoo-mcp/internal/config"
)

// Defaults applied by Config.defaults.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
	DefaultLimit      = 100
	DefaultMaxLimit   = 1000
	DefaultWorkers    = 8
)

// Config holds the connection settings of the Odoo client.
type Config struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	Timeout    config.Duration  `yaml:"timeout"`
	MaxRetries *int             `yaml:"max_retries"`
	RetryDelay *config.Duration `yaml:"retry_delay"`

	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`

	// Workers sizes the pool that runs blocking XML-RPC calls.
	Workers int `yaml:"workers"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = config.Duration(DefaultTimeout)
	}
	if c.MaxRetries == nil {
		n := DefaultMaxRetries
		c.MaxRetries = &n
	}
	if c.RetryDelay == nil {
		d := config.Duration(DefaultRetryDelay)
		c.RetryDelay = &d
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = DefaultMaxLimit
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, errors.New("odoo: url is required"))
	} else if u, err := url.Parse(c.URL); err != nil {
		errs = append(errs, fmt.Errorf("odoo: invalid url: %w", err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("odoo: url %q must be an absolute http(s) URL", c.URL))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("odoo: database is required"))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("odoo: username is required"))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("odoo: password is required"))
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("odoo: max_retries must be >= 0, got %d", *c.MaxRetries))
	}
	if c.RetryDelay != nil && *c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("odoo: retry_delay must be >= 0, got %s", c.RetryDelay.Std()))
	}
	if c.DefaultLimit > 0 && c.MaxLimit > 0 && c.DefaultLimit > c.MaxLimit {
		errs = append(errs, fmt.Errorf("odoo: default_limit %d exceeds max_limit %d", c.DefaultLimit, c.MaxLimit))
	}

	return errors.Join(errs...)
}

// retryPolicy returns the policy described by c. c must have defaults applied.
func (c *Config) retryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: *c.MaxRetries, Delay: c.RetryDelay.Std()}
}
