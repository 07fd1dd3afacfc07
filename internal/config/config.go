// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads server settings from config.json in the XDG config
// dir. Missing keys keep their defaults and JSONQUERY_<KEY> environment
// variables override the file. The upstream DSN is a secret and lives in
// the OS keychain, not here.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/anjanb/questdb/internal/xdg"
)

// EnvPrefix prefixes environment overrides, e.g. JSONQUERY_HTTP_ADDR.
const EnvPrefix = "JSONQUERY_"

// Config holds server settings.
type Config struct {
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	LogRedact bool   `json:"log_redact"`

	HTTPAddr string `json:"http_addr"`
	// GRPCAddr serves the health service; empty disables it.
	GRPCAddr string `json:"grpc_addr"`

	SendBufferSize           Size   `json:"send_buffer_size"`
	FloatScale               int    `json:"float_scale"`
	DoubleScale              int    `json:"double_scale"`
	KeepAliveHeader          string `json:"keep_alive_header"`
	ConnectionCheckFrequency int    `json:"connection_check_frequency"`

	PlanCacheSize int `json:"plan_cache_size"`
	// Workers defaults to GOMAXPROCS.
	Workers int `json:"workers"`

	// CopyRoot defaults to <state dir>/import.
	CopyRoot      string `json:"copy_root"`
	CopyChunkSize Size   `json:"copy_chunk_size"`

	// Engine is memory or postgres.
	Engine string `json:"engine"`

	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
	IdleTimeout  Duration `json:"idle_timeout"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		HTTPAddr:                 ":9000",
		GRPCAddr:                 ":9001",
		SendBufferSize:           2 * 1024 * 1024,
		FloatScale:               4,
		DoubleScale:              12,
		KeepAliveHeader:          "timeout=5, max=10000",
		ConnectionCheckFrequency: 1_000_000,
		PlanCacheSize:            256,
		Workers:                  runtime.GOMAXPROCS(0),
		CopyChunkSize:            4 * 1024 * 1024,
		Engine:                   "memory",
		ReadTimeout:              Duration(30 * time.Second),
		IdleTimeout:              Duration(2 * time.Minute),
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config file and applies environment overrides. A missing
// file yields the defaults.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Config{}, err
	}
	c, err := LoadFile(p)
	if err != nil {
		return c, err
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// LoadFile reads the config file at p over the defaults.
func LoadFile(p string) (Config, error) {
	c := Defaults()
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", p, err)
	}
	return c, nil
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

// setters maps config keys onto parsers of their string form.
var setters = map[string]func(c *Config, v string) error{
	"log_level":                  func(c *Config, v string) error { c.LogLevel = v; return nil },
	"log_format":                 func(c *Config, v string) error { c.LogFormat = v; return nil },
	"log_redact":                 func(c *Config, v string) error { return parseBool(v, &c.LogRedact) },
	"http_addr":                  func(c *Config, v string) error { c.HTTPAddr = v; return nil },
	"grpc_addr":                  func(c *Config, v string) error { c.GRPCAddr = v; return nil },
	"send_buffer_size":           func(c *Config, v string) error { return c.SendBufferSize.Set(v) },
	"float_scale":                func(c *Config, v string) error { return parseInt(v, &c.FloatScale) },
	"double_scale":               func(c *Config, v string) error { return parseInt(v, &c.DoubleScale) },
	"keep_alive_header":          func(c *Config, v string) error { c.KeepAliveHeader = v; return nil },
	"connection_check_frequency": func(c *Config, v string) error { return parseInt(v, &c.ConnectionCheckFrequency) },
	"plan_cache_size":            func(c *Config, v string) error { return parseInt(v, &c.PlanCacheSize) },
	"workers":                    func(c *Config, v string) error { return parseInt(v, &c.Workers) },
	"copy_root":                  func(c *Config, v string) error { c.CopyRoot = v; return nil },
	"copy_chunk_size":            func(c *Config, v string) error { return c.CopyChunkSize.Set(v) },
	"engine":                     func(c *Config, v string) error { c.Engine = v; return nil },
	"read_timeout":               func(c *Config, v string) error { return c.ReadTimeout.Set(v) },
	"write_timeout":              func(c *Config, v string) error { return c.WriteTimeout.Set(v) },
	"idle_timeout":               func(c *Config, v string) error { return c.IdleTimeout.Set(v) },
}

// Keys returns every config key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns the string form v to key.
func (c *Config) Set(key, v string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := set(c, strings.TrimSpace(v)); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// ApplyEnv applies JSONQUERY_<KEY> overrides found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, key := range Keys() {
		if v, ok := lookup(EnvPrefix + strings.ToUpper(key)); ok {
			if err := c.Set(key, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch {
	case c.SendBufferSize < 64:
		return fmt.Errorf("send_buffer_size %s is too small", c.SendBufferSize)
	case c.CopyChunkSize < 1:
		return errors.New("copy_chunk_size must be positive")
	case c.FloatScale < 1 || c.DoubleScale < 1:
		return errors.New("float_scale and double_scale must be positive")
	case c.ConnectionCheckFrequency < 1:
		return errors.New("connection_check_frequency must be positive")
	case c.Workers < 1:
		return errors.New("workers must be positive")
	case c.Engine != "memory" && c.Engine != "postgres":
		return fmt.Errorf("unknown engine %q (memory or postgres)", c.Engine)
	}
	return nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

// Size is a byte count written as a number or a human string like "64KiB".
type Size int

// Set parses a human size.
func (s *Size) Set(v string) error {
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return err
	}
	*s = Size(n)
	return nil
}

func (s Size) String() string { return humanize.IBytes(uint64(s)) }

// Type implements pflag.Value.
func (s *Size) Type() string { return "size" }

func (s Size) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Size) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*s = Size(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	return s.Set(str)
}

// Duration is a time.Duration written as "30s"; zero disables a timeout.
type Duration time.Duration

// Set parses a Go duration string.
func (d *Duration) Set(v string) error {
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Type implements pflag.Value.
func (d *Duration) Type() string { return "duration" }

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	return d.Set(str)
}
