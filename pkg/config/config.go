// Package config loads service settings from a TOML file and command-line
// flags. Precedence is defaults, then the file, then flags the user set.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/estimator"
	"github.com/NERVsystems/ecoroute/pkg/session"
)

// Duration is a time.Duration read from strings such as "1.5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type EstimatorConfig struct {
	FailureRate float64  `toml:"failure_rate"`
	MinDelay    Duration `toml:"min_delay"`
	MaxDelay    Duration `toml:"max_delay"`
	TopN        int      `toml:"top_n"`
	CacheSize   int      `toml:"cache_size"`
	Fixture     string   `toml:"fixture"`
}

type SessionConfig struct {
	TTL         Duration `toml:"ttl"`
	MaxSessions int      `toml:"max_sessions"`
}

type HTTPConfig struct {
	Enabled      bool    `toml:"enabled"`
	Only         bool    `toml:"only"`
	Addr         string  `toml:"addr"`
	BaseURL      string  `toml:"base_url"`
	AuthType     string  `toml:"auth_type"`
	AuthToken    string  `toml:"auth_token"`
	RateLimit    float64 `toml:"rate_limit"`
	RateBurst    int     `toml:"rate_burst"`
	MaxBodyBytes int64   `toml:"max_body_bytes"`
	TLSCertFile  string  `toml:"tls_cert_file"`
	TLSKeyFile   string  `toml:"tls_key_file"`
	ForceHTTPS   bool    `toml:"force_https"`

	// TrustedProxies lists peers (addresses or CIDRs) whose
	// X-Forwarded-For and X-Real-IP headers name the client.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a
// single-host prefix.
func (c HTTPConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

type MonitoringConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type TracingConfig struct {
	Endpoint    string  `toml:"endpoint"`
	Insecure    bool    `toml:"insecure"`
	SampleRatio float64 `toml:"sample_ratio"`
}

// Config holds the application configuration
type Config struct {
	Debug      bool             `toml:"debug"`
	Estimator  EstimatorConfig  `toml:"estimator"`
	Session    SessionConfig    `toml:"session"`
	HTTP       HTTPConfig       `toml:"http"`
	Monitoring MonitoringConfig `toml:"monitoring"`
	Tracing    TracingConfig    `toml:"tracing"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Estimator: EstimatorConfig{
			FailureRate: estimator.DefaultFailureRate,
			MinDelay:    Duration{estimator.DefaultMinDelay},
			MaxDelay:    Duration{estimator.DefaultMaxDelay},
			TopN:        estimator.DefaultTopN,
			CacheSize:   estimator.DefaultCacheSize,
		},
		Session: SessionConfig{
			TTL:         Duration{session.DefaultTTL},
			MaxSessions: session.DefaultMaxSessions,
		},
		HTTP: HTTPConfig{
			Addr:         ":7082",
			AuthType:     core.AuthNone,
			RateLimit:    10,
			RateBurst:    20,
			MaxBodyBytes: 1 << 20,
		},
		Monitoring: MonitoringConfig{
			Addr: ":9090",
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// Load decodes the TOML file at path over Default. Unknown keys are an
// error so that typos do not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("error decoding config file: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	e := c.Estimator
	if e.FailureRate < 0 || e.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("estimator.failure_rate must be in [0, 1], got %v", e.FailureRate))
	}
	if e.MinDelay.Duration < 0 {
		errs = append(errs, fmt.Errorf("estimator.min_delay must not be negative, got %s", e.MinDelay))
	}
	if e.MaxDelay.Duration < e.MinDelay.Duration {
		errs = append(errs, fmt.Errorf("estimator.max_delay (%s) must not be less than min_delay (%s)", e.MaxDelay, e.MinDelay))
	}
	if e.TopN < 1 {
		errs = append(errs, fmt.Errorf("estimator.top_n must be at least 1, got %d", e.TopN))
	}
	if e.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("estimator.cache_size must not be negative, got %d", e.CacheSize))
	}

	if c.Session.TTL.Duration <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be positive, got %s", c.Session.TTL))
	}
	if c.Session.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("session.max_sessions must not be negative, got %d", c.Session.MaxSessions))
	}

	authType, err := core.ParseAuthType(c.HTTP.AuthType)
	if err != nil {
		errs = append(errs, fmt.Errorf("http.auth_type: %w", err))
	}
	if c.HTTP.Enabled || c.HTTP.Only {
		switch authType {
		case core.AuthBearer:
			if err := core.ValidateAuthToken(c.HTTP.AuthToken); err != nil {
				errs = append(errs, fmt.Errorf("http.auth_token: %w", err))
			}
		case core.AuthBasic:
			if !strings.Contains(c.HTTP.AuthToken, ":") {
				errs = append(errs, errors.New("http.auth_token must be user:password for basic auth"))
			}
		}
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		errs = append(errs, errors.New("http.rate_limit and http.rate_burst must not be negative"))
	}
	if (c.HTTP.TLSCertFile == "") != (c.HTTP.TLSKeyFile == "") {
		errs = append(errs, errors.New("http.tls_cert_file and http.tls_key_file must be set together"))
	}
	if _, err := c.HTTP.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, fmt.Errorf("http.trusted_proxies: %w", err))
	}

	if r := c.Tracing.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be in [0, 1], got %v", r))
	}

	return errors.Join(errs...)
}

// EstimatorOptions converts the estimator section. Hooks are left to the
// caller.
func (c Config) EstimatorOptions() estimator.Options {
	return estimator.Options{
		MinDelay:    c.Estimator.MinDelay.Duration,
		MaxDelay:    c.Estimator.MaxDelay.Duration,
		FailureRate: c.Estimator.FailureRate,
		TopN:        c.Estimator.TopN,
	}
}

// RegisterFlags defines the command-line flags on fs, bound to c. Call it
// with a Config holding defaults, then use Merge to layer set flags over a
// file configuration.
func RegisterFlags(fs *flag.FlagSet, c *Config) {
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")

	fs.StringVar(&c.Estimator.Fixture, "fixture", c.Estimator.Fixture, "Route fixture JSON file, or \"embedded\" for the built-in set (empty uses synthesized routes)")
	fs.Float64Var(&c.Estimator.FailureRate, "failure-rate", c.Estimator.FailureRate, "Probability of a simulated transient failure")
	fs.DurationVar(&c.Estimator.MinDelay.Duration, "min-delay", c.Estimator.MinDelay.Duration, "Minimum simulated latency")
	fs.DurationVar(&c.Estimator.MaxDelay.Duration, "max-delay", c.Estimator.MaxDelay.Duration, "Maximum simulated latency")
	fs.IntVar(&c.Estimator.TopN, "top-n", c.Estimator.TopN, "Number of route candidates returned")
	fs.IntVar(&c.Estimator.CacheSize, "cache-size", c.Estimator.CacheSize, "Route cache entries (0 disables)")

	fs.DurationVar(&c.Session.TTL.Duration, "session-ttl", c.Session.TTL.Duration, "Idle session lifetime")

	fs.BoolVar(&c.HTTP.Enabled, "enable-http", c.HTTP.Enabled, "Enable HTTP+SSE transport alongside stdio")
	fs.BoolVar(&c.HTTP.Only, "http-only", c.HTTP.Only, "Serve only HTTP+SSE (disable stdio)")
	fs.StringVar(&c.HTTP.Addr, "http-addr", c.HTTP.Addr, "HTTP transport listen address")
	fs.StringVar(&c.HTTP.BaseURL, "http-base-url", c.HTTP.BaseURL, "Public base URL for SSE endpoints")
	fs.StringVar(&c.HTTP.AuthType, "http-auth-type", c.HTTP.AuthType, "HTTP authentication: none, bearer or basic")
	fs.StringVar(&c.HTTP.AuthToken, "http-auth-token", c.HTTP.AuthToken, "Bearer token or user:password for HTTP auth")

	fs.BoolVar(&c.Monitoring.Enabled, "enable-monitoring", c.Monitoring.Enabled, "Serve Prometheus metrics and health endpoints")
	fs.StringVar(&c.Monitoring.Addr, "monitoring-addr", c.Monitoring.Addr, "Monitoring listen address")

	fs.StringVar(&c.Tracing.Endpoint, "otlp-endpoint", c.Tracing.Endpoint, "OTLP gRPC endpoint (empty disables export)")
}

// flagSetters copies one flag's field from src to dst.
var flagSetters = map[string]func(dst *Config, src Config){
	"debug":             func(d *Config, s Config) { d.Debug = s.Debug },
	"fixture":           func(d *Config, s Config) { d.Estimator.Fixture = s.Estimator.Fixture },
	"failure-rate":      func(d *Config, s Config) { d.Estimator.FailureRate = s.Estimator.FailureRate },
	"min-delay":         func(d *Config, s Config) { d.Estimator.MinDelay = s.Estimator.MinDelay },
	"max-delay":         func(d *Config, s Config) { d.Estimator.MaxDelay = s.Estimator.MaxDelay },
	"top-n":             func(d *Config, s Config) { d.Estimator.TopN = s.Estimator.TopN },
	"cache-size":        func(d *Config, s Config) { d.Estimator.CacheSize = s.Estimator.CacheSize },
	"session-ttl":       func(d *Config, s Config) { d.Session.TTL = s.Session.TTL },
	"enable-http":       func(d *Config, s Config) { d.HTTP.Enabled = s.HTTP.Enabled },
	"http-only":         func(d *Config, s Config) { d.HTTP.Only = s.HTTP.Only },
	"http-addr":         func(d *Config, s Config) { d.HTTP.Addr = s.HTTP.Addr },
	"http-base-url":     func(d *Config, s Config) { d.HTTP.BaseURL = s.HTTP.BaseURL },
	"http-auth-type":    func(d *Config, s Config) { d.HTTP.AuthType = s.HTTP.AuthType },
	"http-auth-token":   func(d *Config, s Config) { d.HTTP.AuthToken = s.HTTP.AuthToken },
	"enable-monitoring": func(d *Config, s Config) { d.Monitoring.Enabled = s.Monitoring.Enabled },
	"monitoring-addr":   func(d *Config, s Config) { d.Monitoring.Addr = s.Monitoring.Addr },
	"otlp-endpoint":     func(d *Config, s Config) { d.Tracing.Endpoint = s.Tracing.Endpoint },
}

// Merge returns base with every flag explicitly set on fs copied from
// flags. fs must have been parsed.
func Merge(base, flags Config, fs *flag.FlagSet) Config {
	fs.Visit(func(f *flag.Flag) {
		if set, ok := flagSetters[f.Name]; ok {
			set(&base, flags)
		}
	})
	return base
}
