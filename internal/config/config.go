// Package config provides functionality for managing configuration options
// for the application. Sources are applied in increasing precedence:
// defaults, config file (JSON or YAML), command-line flags, environment.
// A .env file in the working directory is loaded into the environment first
// without overriding variables that are already set.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the HTTP server's listening address (ip:port).
	Port string

	// ResultHostname is the base URL used for result links.
	ResultHostname string

	// DatabaseDSN is the PostgreSQL connection string. Empty selects the
	// in-memory store.
	DatabaseDSN string

	// RedisURL addresses Redis for the cache and pending counter. Empty
	// selects in-process implementations.
	RedisURL string

	// GRPCAddress enables the gRPC server when set.
	GRPCAddress string

	LogLevel string

	// CacheTTL is the upper bound for resolution cache entries.
	CacheTTL time.Duration

	// FlushInterval is the click aggregator period.
	FlushInterval time.Duration

	SweepInterval time.Duration
	OrphanGrace   time.Duration

	// RunAggregator runs the click aggregator inside the server process.
	RunAggregator bool

	// EnablePprof indicates whether to enable pprof for performance profiling.
	EnablePprof bool

	// EnableHTTPS serves TLS with autocert certificates for TLSHosts.
	EnableHTTPS bool
	TLSHosts    []string

	// Config is the path of the optional config file.
	Config string
}

// fileOptions mirrors Options for config files; nil fields are left alone.
type fileOptions struct {
	Port           *string `json:"server_address" yaml:"server_address"`
	ResultHostname *string `json:"base_url" yaml:"base_url"`
	DatabaseDSN    *string `json:"database_dsn" yaml:"database_dsn"`
	RedisURL       *string `json:"redis_url" yaml:"redis_url"`
	GRPCAddress    *string `json:"grpc_address" yaml:"grpc_address"`
	LogLevel       *string `json:"log_level" yaml:"log_level"`
	CacheTTL       *string `json:"cache_ttl" yaml:"cache_ttl"`
	FlushInterval  *string `json:"flush_interval" yaml:"flush_interval"`
	SweepInterval  *string `json:"sweep_interval" yaml:"sweep_interval"`
	OrphanGrace    *string `json:"orphan_grace" yaml:"orphan_grace"`
	RunAggregator  *bool   `json:"run_aggregator" yaml:"run_aggregator"`
	EnablePprof    *bool   `json:"enable_pprof" yaml:"enable_pprof"`
	EnableHTTPS    *bool   `json:"enable_https" yaml:"enable_https"`
	TLSHosts       *string `json:"tls_hosts" yaml:"tls_hosts"`
}

func defaults() *Options {
	return &Options{
		Port:           "localhost:8080",
		ResultHostname: "http://localhost:8080",
		LogLevel:       "info",
		CacheTTL:       24 * time.Hour,
		FlushInterval:  5 * time.Second,
		SweepInterval:  time.Minute,
		OrphanGrace:    time.Minute,
		RunAggregator:  true,
	}
}

// Parse reads configuration for the current process.
func Parse() (*Options, error) {
	return ParseArgs(os.Args[0], os.Args[1:])
}

// ParseArgs reads configuration using args as the command line.
func ParseArgs(name string, args []string) (*Options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	options := defaults()

	// Flags are parsed into a scratch copy so that only explicitly set ones
	// override the config file.
	flagged := defaults()
	var tlsHosts string

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.StringVar(&flagged.Port, "a", flagged.Port, "run on ip:port server")
	flags.StringVar(&flagged.ResultHostname, "b", flagged.ResultHostname, "result base url")
	flags.StringVar(&flagged.DatabaseDSN, "d", "", "postgres dsn")
	flags.StringVar(&flagged.RedisURL, "r", "", "redis url")
	flags.StringVar(&flagged.GRPCAddress, "g", "", "run gRPC on ip:port")
	flags.StringVar(&flagged.LogLevel, "l", flagged.LogLevel, "log level")
	flags.Var(durationValue{&flagged.CacheTTL}, "cache-ttl", "resolution cache ttl")
	flags.Var(durationValue{&flagged.FlushInterval}, "flush-interval", "click aggregation interval")
	flags.Var(durationValue{&flagged.SweepInterval}, "sweep-interval", "orphan sweep interval")
	flags.Var(durationValue{&flagged.OrphanGrace}, "orphan-grace", "orphan age before sweeping")
	flags.BoolVar(&flagged.RunAggregator, "run-aggregator", flagged.RunAggregator, "run click aggregator in process")
	flags.BoolVar(&flagged.EnablePprof, "p", false, "enable pprof")
	flags.BoolVar(&flagged.EnableHTTPS, "s", false, "enable https")
	flags.StringVar(&tlsHosts, "tls-hosts", "", "comma separated autocert hosts")
	flags.StringVar(&flagged.Config, "c", "", "path to config file")
	flags.StringVar(&flagged.Config, "config", "", "path to config file")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	options.Config = flagged.Config
	if v := os.Getenv("CONFIG"); v != "" {
		options.Config = v
	}
	if options.Config != "" {
		if err := loadFile(options.Config, options); err != nil {
			return nil, err
		}
	}

	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			options.Port = flagged.Port
		case "b":
			options.ResultHostname = flagged.ResultHostname
		case "d":
			options.DatabaseDSN = flagged.DatabaseDSN
		case "r":
			options.RedisURL = flagged.RedisURL
		case "g":
			options.GRPCAddress = flagged.GRPCAddress
		case "l":
			options.LogLevel = flagged.LogLevel
		case "cache-ttl":
			options.CacheTTL = flagged.CacheTTL
		case "flush-interval":
			options.FlushInterval = flagged.FlushInterval
		case "sweep-interval":
			options.SweepInterval = flagged.SweepInterval
		case "orphan-grace":
			options.OrphanGrace = flagged.OrphanGrace
		case "run-aggregator":
			options.RunAggregator = flagged.RunAggregator
		case "p":
			options.EnablePprof = flagged.EnablePprof
		case "s":
			options.EnableHTTPS = flagged.EnableHTTPS
		case "tls-hosts":
			options.TLSHosts = splitList(tlsHosts)
		}
	})

	if err := applyEnv(options); err != nil {
		return nil, err
	}

	if err := options.validate(); err != nil {
		return nil, err
	}

	return options, nil
}

func loadFile(path string, o *Options) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var f fileOptions
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &f)
	default:
		err = json.Unmarshal(content, &f)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&o.Port, f.Port)
	setString(&o.ResultHostname, f.ResultHostname)
	setString(&o.DatabaseDSN, f.DatabaseDSN)
	setString(&o.RedisURL, f.RedisURL)
	setString(&o.GRPCAddress, f.GRPCAddress)
	setString(&o.LogLevel, f.LogLevel)
	setBool(&o.RunAggregator, f.RunAggregator)
	setBool(&o.EnablePprof, f.EnablePprof)
	setBool(&o.EnableHTTPS, f.EnableHTTPS)
	if f.TLSHosts != nil {
		o.TLSHosts = splitList(*f.TLSHosts)
	}

	for _, d := range []struct {
		dst *time.Duration
		src *string
	}{
		{&o.CacheTTL, f.CacheTTL},
		{&o.FlushInterval, f.FlushInterval},
		{&o.SweepInterval, f.SweepInterval},
		{&o.OrphanGrace, f.OrphanGrace},
	} {
		if d.src == nil {
			continue
		}
		v, err := ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
		*d.dst = v
	}

	return nil
}

func applyEnv(o *Options) error {
	for env, dst := range map[string]*string{
		"SERVER_ADDRESS": &o.Port,
		"BASE_URL":       &o.ResultHostname,
		"DATABASE_DSN":   &o.DatabaseDSN,
		"REDIS_URL":      &o.RedisURL,
		"GRPC_ADDRESS":   &o.GRPCAddress,
		"LOG_LEVEL":      &o.LogLevel,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	for env, dst := range map[string]*time.Duration{
		"CACHE_TTL":      &o.CacheTTL,
		"FLUSH_INTERVAL": &o.FlushInterval,
		"SWEEP_INTERVAL": &o.SweepInterval,
		"ORPHAN_GRACE":   &o.OrphanGrace,
	} {
		if v := os.Getenv(env); v != "" {
			d, err := ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
			*dst = d
		}
	}

	for env, dst := range map[string]*bool{
		"RUN_AGGREGATOR": &o.RunAggregator,
		"ENABLE_PPROF":   &o.EnablePprof,
		"ENABLE_HTTPS":   &o.EnableHTTPS,
	} {
		if v := os.Getenv(env); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
			*dst = b
		}
	}

	if v := os.Getenv("TLS_HOSTS"); v != "" {
		o.TLSHosts = splitList(v)
	}

	return nil
}

func (o *Options) validate() error {
	switch {
	case o.CacheTTL <= 0:
		return errors.New("cache ttl must be positive")
	case o.FlushInterval <= 0:
		return errors.New("flush interval must be positive")
	case o.SweepInterval <= 0:
		return errors.New("sweep interval must be positive")
	case o.OrphanGrace < 0:
		return errors.New("orphan grace must not be negative")
	case o.EnableHTTPS && len(o.TLSHosts) == 0:
		return errors.New("https requires at least one TLS host")
	}
	return nil
}

// ParseDuration accepts Go duration strings ("90s", "24h") and bare
// integers, which are read as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

type durationValue struct {
	d *time.Duration
}

func (v durationValue) String() string {
	if v.d == nil {
		return ""
	}
	return v.d.String()
}

func (v durationValue) Set(s string) error {
	d, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*v.d = d
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
