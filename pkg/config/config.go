// Package config loads the extras configuration file, yaml or toml.
package config

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-pkgz/fileutils"
	"github.com/go-pkgz/stringutils"
	"github.com/hashicorp/go-multierror"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config defines the database, exposed tables and the http server.
type Config struct {
	DSN         string  `yaml:"dsn" toml:"dsn"`                 // empty for a private memory database
	Tables      []Table `yaml:"tables" toml:"tables"`           // modules and the names they are exposed under
	Functions   bool    `yaml:"functions" toml:"functions"`     // register math functions
	Concurrency int     `yaml:"concurrency" toml:"concurrency"` // parallel statements in a batch
	Server      Server  `yaml:"server" toml:"server"`
}

// Table exposes a module under one or more table names.
type Table struct {
	Module string   `yaml:"module" toml:"module"`
	Names  []string `yaml:"names" toml:"names"` // defaults to the module name
}

// Server is the http api configuration.
type Server struct {
	Listen  string `yaml:"listen" toml:"listen"`
	Timeout string `yaml:"timeout" toml:"timeout"` // read and write timeout, as "10s"

	timeout time.Duration
}

// defaults
const (
	DefaultConcurrency = 4
	DefaultListen      = "127.0.0.1:8080"
	DefaultTimeout     = 30 * time.Second
)

// Default returns a config exposing the range table, also as generate_series, and math functions.
func Default() *Config {
	return &Config{
		Tables:      []Table{{Module: "range", Names: []string{"range", "generate_series"}}},
		Functions:   true,
		Concurrency: DefaultConcurrency,
		Server:      Server{Listen: DefaultListen, timeout: DefaultTimeout},
	}
}

// Load reads the config from fname. A missing file gives Default.
// Known lists module names the tables may refer to, nothing is checked if empty.
func Load(fname string, known []string) (*Config, error) {
	log.Printf("[DEBUG] request to load config %q", fname)
	if fname == "" || !fileutils.IsFile(fname) {
		log.Printf("[DEBUG] no config file %q found, using defaults", fname)
		return Default(), nil
	}

	data, err := os.ReadFile(fname) // nolint
	if err != nil {
		return nil, fmt.Errorf("can't read config %s: %w", fname, err)
	}

	res := Default()
	res.Tables = nil
	if err := unmarshal(fname, data, res); err != nil {
		return nil, fmt.Errorf("can't unmarshal config: %w", err)
	}
	if err := res.Validate(known); err != nil {
		return nil, fmt.Errorf("config %s is invalid: %w", fname, err)
	}
	log.Printf("[INFO] config loaded from %s with %d table(s)", fname, len(res.Tables))
	return res, nil
}

func unmarshal(fname string, data []byte, v any) error {
	switch {
	case strings.HasSuffix(fname, ".yml") || strings.HasSuffix(fname, ".yaml") || !strings.Contains(fname, "."):
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true) // strict mode, fail on unknown fields
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("can't unmarshal yaml config %s: %w", fname, err)
		}
	case strings.HasSuffix(fname, ".toml"):
		if err := toml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("can't unmarshal toml config %s: %w", fname, err)
		}
	default:
		return fmt.Errorf("unknown config format %s", fname)
	}
	return nil
}

// Validate fills defaults and checks the config, reporting all problems at once.
func (c *Config) Validate(known []string) error {
	errs := new(multierror.Error)

	if len(c.Tables) == 0 {
		c.Tables = Default().Tables
	}
	seen := map[string]string{}
	for i, t := range c.Tables {
		if t.Module == "" {
			errs = multierror.Append(errs, fmt.Errorf("table #%d: module is required", i))
			continue
		}
		if len(known) > 0 && !stringutils.Contains(t.Module, known) {
			errs = multierror.Append(errs, fmt.Errorf("table #%d: unknown module %q", i, t.Module))
		}
		names := stringutils.DeDup(t.Names)
		if len(names) == 0 {
			names = []string{t.Module}
		}
		for _, n := range names {
			if stringutils.IsBlank(n) {
				errs = multierror.Append(errs, fmt.Errorf("table #%d: blank name", i))
				continue
			}
			if prev, ok := seen[n]; ok {
				errs = multierror.Append(errs, fmt.Errorf("table #%d: name %q already used by module %s", i, n, prev))
				continue
			}
			seen[n] = t.Module
		}
		c.Tables[i].Names = names
	}

	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Concurrency < 0 {
		errs = multierror.Append(errs, fmt.Errorf("concurrency %d is negative", c.Concurrency))
	}

	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	c.Server.timeout = DefaultTimeout
	if c.Server.Timeout != "" {
		d, err := time.ParseDuration(c.Server.Timeout)
		switch {
		case err != nil:
			errs = multierror.Append(errs, fmt.Errorf("server timeout %q: %w", c.Server.Timeout, err))
		case d <= 0:
			errs = multierror.Append(errs, fmt.Errorf("server timeout %q must be positive", c.Server.Timeout))
		default:
			c.Server.timeout = d
		}
	}

	return errs.ErrorOrNil()
}

// TimeoutDuration returns the parsed server timeout.
func (s Server) TimeoutDuration() time.Duration {
	if s.timeout == 0 {
		return DefaultTimeout
	}
	return s.timeout
}
