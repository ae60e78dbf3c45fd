package fetchly

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the file form of a client's instance defaults. Hooks,
// loggers and telemetry providers have no file form and are set in code.
//
// Example file:
//
//	baseURL: https://dummyjson.com
//	timeout: 10s
//	headers:
//	  Authorization: Bearer abc
//	params:
//	  limit: 10
//	  skip: 0
//	responseFormat: json
//	showLogs: true
//	host:
//	  preset: low-latency
//	  maxIdleConnsPerHost: 50
type FileConfig struct {
	BaseURL *string           `yaml:"baseURL"`
	Headers map[string]string `yaml:"headers"`
	Params  Params            `yaml:"params"`
	Timeout *time.Duration    `yaml:"timeout"`

	Mode           *string `yaml:"mode"`
	Cache          *string `yaml:"cache"`
	Credentials    *string `yaml:"credentials"`
	Redirect       *string `yaml:"redirect"`
	Referrer       *string `yaml:"referrer"`
	ReferrerPolicy *string `yaml:"referrerPolicy"`

	ResponseFormat *ResponseFormat `yaml:"responseFormat"`
	Proxy          *string         `yaml:"proxy"`
	Next           *NextConfig     `yaml:"next"`

	AdditionalOptions map[string]any `yaml:"additionalOptions"`

	ShowLogs    *bool  `yaml:"showLogs"`
	ServiceName string `yaml:"serviceName"`

	Host *HostFileConfig `yaml:"host"`
}

// HostFileConfig selects a HostConfig preset and overrides some of its
// fields. When present, the client gets its own host instead of the shared
// default one.
type HostFileConfig struct {
	// Preset is one of "default", "high-throughput", "low-latency" or
	// "conservative". Empty means "default".
	Preset string `yaml:"preset"`

	MaxIdleConns          *int           `yaml:"maxIdleConns"`
	MaxIdleConnsPerHost   *int           `yaml:"maxIdleConnsPerHost"`
	MaxConnsPerHost       *int           `yaml:"maxConnsPerHost"`
	IdleConnTimeout       *time.Duration `yaml:"idleConnTimeout"`
	TLSHandshakeTimeout   *time.Duration `yaml:"tlsHandshakeTimeout"`
	ResponseHeaderTimeout *time.Duration `yaml:"responseHeaderTimeout"`
	DialTimeout           *time.Duration `yaml:"dialTimeout"`
	DisableCompression    *bool          `yaml:"disableCompression"`
	ForceHTTP2            *bool          `yaml:"forceHTTP2"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fetchly: read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML document. Unknown keys are rejected. An empty
// document yields an empty FileConfig.
func ParseConfig(data []byte) (*FileConfig, error) {
	var cfg FileConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("fetchly: parse config: %w", err)
	}

	if cfg.Host != nil {
		if _, err := cfg.Host.HostConfig(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Options converts the file into client options.
//
// Example:
//
//	cfg, err := fetchly.LoadConfig("fetchly.yaml")
//	if err != nil {
//	    return err
//	}
//	client := fetchly.New(append(cfg.Options(), fetchly.WithOnError(report))...)
func (f *FileConfig) Options() []Option {
	if f == nil {
		return nil
	}

	opts := []Option{func(o *Options) {
		o.BaseURL = f.BaseURL
		o.Timeout = f.Timeout
		o.Mode = f.Mode
		o.Cache = f.Cache
		o.Credentials = f.Credentials
		o.Redirect = f.Redirect
		o.Referrer = f.Referrer
		o.ReferrerPolicy = f.ReferrerPolicy
		o.ResponseFormat = f.ResponseFormat
		o.Proxy = f.Proxy
		o.ShowLogs = f.ShowLogs
	}}

	if f.Headers != nil {
		opts = append(opts, WithHeaders(f.Headers))
	}
	if f.Params != nil {
		opts = append(opts, WithParams(f.Params))
	}
	if f.Next != nil {
		opts = append(opts, WithNext(*f.Next))
	}
	if f.AdditionalOptions != nil {
		opts = append(opts, WithAdditionalOptions(f.AdditionalOptions))
	}
	if f.ServiceName != "" {
		opts = append(opts, WithServiceName(f.ServiceName))
	}
	if f.Host != nil {
		// Validated by ParseConfig.
		hc, _ := f.Host.HostConfig()
		opts = append(opts, WithHost(NewHost(hc)))
	}
	return opts
}

// HostConfig resolves the preset and applies the overrides.
func (h *HostFileConfig) HostConfig() (HostConfig, error) {
	var cfg HostConfig
	switch h.Preset {
	case "", "default":
		cfg = DefaultHostConfig()
	case "high-throughput":
		cfg = HighThroughputHostConfig()
	case "low-latency":
		cfg = LowLatencyHostConfig()
	case "conservative":
		cfg = ConservativeHostConfig()
	default:
		return HostConfig{}, fmt.Errorf("fetchly: unknown host preset %q", h.Preset)
	}

	if h.MaxIdleConns != nil {
		cfg.MaxIdleConns = *h.MaxIdleConns
	}
	if h.MaxIdleConnsPerHost != nil {
		cfg.MaxIdleConnsPerHost = *h.MaxIdleConnsPerHost
	}
	if h.MaxConnsPerHost != nil {
		cfg.MaxConnsPerHost = *h.MaxConnsPerHost
	}
	if h.IdleConnTimeout != nil {
		cfg.IdleConnTimeout = *h.IdleConnTimeout
	}
	if h.TLSHandshakeTimeout != nil {
		cfg.TLSHandshakeTimeout = *h.TLSHandshakeTimeout
	}
	if h.ResponseHeaderTimeout != nil {
		cfg.ResponseHeaderTimeout = *h.ResponseHeaderTimeout
	}
	if h.DialTimeout != nil {
		cfg.DialTimeout = *h.DialTimeout
	}
	if h.DisableCompression != nil {
		cfg.DisableCompression = *h.DisableCompression
	}
	if h.ForceHTTP2 != nil {
		cfg.ForceHTTP2 = *h.ForceHTTP2
	}
	return cfg, nil
}
