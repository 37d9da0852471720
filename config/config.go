// Package config loads the TOML configuration shared by the ecs binaries.
//
// Example:
//
//	log_level = "debug"
//
//	[host]
//	max_cycles = 20000000
//	parallelism = 4
//	textual_argv = false
//
//	[store]
//	write_policy = "all"
//
//	[[store.backends]]
//	kind = "localfs"
//	dir = "/var/lib/ecs/cas"
//
//	[[store.backends]]
//	kind = "grpc"
//	addr = "cas.internal:7443"
//	timeout = "5s"
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"ckbecs.dev/ecs/host"
	"ckbecs.dev/ecs/internal/logging"
	"ckbecs.dev/ecs/storage"
	"ckbecs.dev/ecs/storage/grpccas"
	"ckbecs.dev/ecs/storage/localfs"
)

const (
	KindLocalFS = "localfs"
	KindGRPC    = "grpc"
)

type Config struct {
	LogLevel string
	Host     Host
	Store    Store
}

// Host holds verifier host limits. Zero values select host defaults.
type Host struct {
	MaxCycles    uint64
	Parallelism  int
	MaxExecDepth int
	TextualArgv  bool
}

type Store struct {
	WritePolicy storage.WritePolicy
	Backends    []Backend
}

// Backend is one CAS, tried in configuration order.
type Backend struct {
	Name        string
	Kind        string
	Dir         string
	Addr        string
	Timeout     time.Duration
	MaxMsgBytes int
}

type fileConfig struct {
	LogLevel string    `toml:"log_level"`
	Host     fileHost  `toml:"host"`
	Store    fileStore `toml:"store"`
}

type fileHost struct {
	MaxCycles    uint64 `toml:"max_cycles"`
	Parallelism  int    `toml:"parallelism"`
	MaxExecDepth int    `toml:"max_exec_depth"`
	TextualArgv  bool   `toml:"textual_argv"`
}

type fileStore struct {
	WritePolicy string        `toml:"write_policy"`
	Backends    []fileBackend `toml:"backends"`
}

type fileBackend struct {
	Name        string `toml:"name"`
	Kind        string `toml:"kind"`
	Dir         string `toml:"dir"`
	Addr        string `toml:"addr"`
	Timeout     string `toml:"timeout"`
	MaxMsgBytes int    `toml:"max_msg_bytes"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: logging.DefaultLevel,
		Store:    Store{WritePolicy: storage.WriteFirst},
	}
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return fromFile(raw, meta)
}

// Parse is Load for an in-memory document.
func Parse(doc string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(doc, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return fromFile(raw, meta)
}

func fromFile(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config: unknown keys: %s", strings.Join(keys, ", "))
	}

	cfg := Default()
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	cfg.Host = Host(raw.Host)
	if meta.IsDefined("store", "write_policy") {
		policy, err := storage.ParseWritePolicy(strings.TrimSpace(raw.Store.WritePolicy))
		if err != nil {
			return Config{}, fmt.Errorf("config: store.write_policy: %w", err)
		}
		cfg.Store.WritePolicy = policy
	}
	for i, b := range raw.Store.Backends {
		backend := Backend{
			Name:        strings.TrimSpace(b.Name),
			Kind:        strings.TrimSpace(b.Kind),
			Dir:         strings.TrimSpace(b.Dir),
			Addr:        strings.TrimSpace(b.Addr),
			MaxMsgBytes: b.MaxMsgBytes,
		}
		if backend.Name == "" {
			backend.Name = fmt.Sprintf("%s-%d", backend.Kind, i)
		}
		if t := strings.TrimSpace(b.Timeout); t != "" {
			d, err := time.ParseDuration(t)
			if err != nil {
				return Config{}, fmt.Errorf("config: store.backends[%d].timeout: %w", i, err)
			}
			backend.Timeout = d
		}
		cfg.Store.Backends = append(cfg.Store.Backends, backend)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem found, not just the first.
func (c Config) Validate() error {
	var errs *multierror.Error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Host.Parallelism < 0 {
		errs = multierror.Append(errs, errors.New("host.parallelism must not be negative"))
	}
	if c.Host.MaxExecDepth < 0 {
		errs = multierror.Append(errs, errors.New("host.max_exec_depth must not be negative"))
	}
	if _, err := storage.ParseWritePolicy(string(c.Store.WritePolicy)); err != nil {
		errs = multierror.Append(errs, err)
	}
	seen := make(map[string]bool, len(c.Store.Backends))
	for i, b := range c.Store.Backends {
		if seen[b.Name] {
			errs = multierror.Append(errs, fmt.Errorf("store.backends[%d]: duplicate name %q", i, b.Name))
		}
		seen[b.Name] = true
		switch b.Kind {
		case KindLocalFS:
			if b.Dir == "" {
				errs = multierror.Append(errs, fmt.Errorf("store.backends[%d]: localfs requires dir", i))
			}
		case KindGRPC:
			if b.Addr == "" {
				errs = multierror.Append(errs, fmt.Errorf("store.backends[%d]: grpc requires addr", i))
			}
			if b.Timeout < 0 || b.MaxMsgBytes < 0 {
				errs = multierror.Append(errs, fmt.Errorf("store.backends[%d]: timeout and max_msg_bytes must not be negative", i))
			}
		default:
			errs = multierror.Append(errs, fmt.Errorf("store.backends[%d]: unknown kind %q", i, b.Kind))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// HostOptions converts the host section. logger may be nil.
func (c Config) HostOptions(logger *zerolog.Logger) host.Options {
	return host.Options{
		MaxCycles:    c.Host.MaxCycles,
		Parallelism:  c.Host.Parallelism,
		MaxExecDepth: c.Host.MaxExecDepth,
		TextualArgv:  c.Host.TextualArgv,
		Logger:       logger,
	}
}

// OpenStore opens the configured backends in order. The returned close
// function releases network clients and is safe to call when err != nil.
func (c Config) OpenStore() (storage.MultiCAS, func() error, error) {
	var (
		backends []storage.NamedCAS
		clients  []*grpccas.Client
	)
	closeAll := func() error {
		var errs *multierror.Error
		for _, cl := range clients {
			errs = multierror.Append(errs, cl.Close())
		}
		return errs.ErrorOrNil()
	}
	if len(c.Store.Backends) == 0 {
		return storage.MultiCAS{}, closeAll, storage.ErrNoBackends
	}
	for _, b := range c.Store.Backends {
		var cas storage.CAS
		switch b.Kind {
		case KindLocalFS:
			fs, err := localfs.New(b.Dir)
			if err != nil {
				return storage.MultiCAS{}, closeAll, fmt.Errorf("open %s: %w", b.Name, err)
			}
			cas = fs
		case KindGRPC:
			cl, err := grpccas.Dial(b.Addr, grpccas.DialOptions{Timeout: b.Timeout, MaxMsgBytes: b.MaxMsgBytes})
			if err != nil {
				return storage.MultiCAS{}, closeAll, fmt.Errorf("open %s: %w", b.Name, err)
			}
			clients = append(clients, cl)
			cas = cl
		default:
			return storage.MultiCAS{}, closeAll, fmt.Errorf("open %s: unknown kind %q", b.Name, b.Kind)
		}
		backends = append(backends, storage.NamedCAS{Name: b.Name, CAS: cas})
	}
	return storage.MultiCAS{Backends: backends, Policy: c.Store.WritePolicy}, closeAll, nil
}
