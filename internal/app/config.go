package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/decred/slog"

	"silent/internal/entropy"
)

const (
	// ConfigFilename is the config file looked up in the home directory.
	ConfigFilename = "config.toml"

	defaultRelayURL     = "http://127.0.0.1:8080"
	defaultRelayTimeout = 10 * time.Second
	defaultLogLevel     = "info"
)

// Relay is the relay client configuration.
type Relay struct {
	// URL is the relay base URL.
	URL string

	// Timeout bounds each relay request.
	Timeout time.Duration
}

func (r *Relay) fixup() {
	if r.URL == "" {
		r.URL = defaultRelayURL
	}
	if r.Timeout <= 0 {
		r.Timeout = defaultRelayTimeout
	}
}

func (r *Relay) validate() error {
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("config: Relay: URL %q: %v", r.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: Relay: URL %q must be http or https", r.URL)
	}
	return nil
}

// Entropy is the optional network entropy enhancer configuration. An empty
// URL disables it.
type Entropy struct {
	URL     string
	APIKey  string `toml:"api_key"`
	Timeout time.Duration
	Refresh time.Duration
}

func (e *Entropy) validate() error {
	if e.URL == "" {
		return nil
	}
	if _, err := url.Parse(e.URL); err != nil {
		return fmt.Errorf("config: Entropy: URL %q: %v", e.URL, err)
	}
	if e.Timeout > entropy.MaxTimeout {
		return fmt.Errorf("config: Entropy: Timeout %v exceeds %v", e.Timeout, entropy.MaxTimeout)
	}
	return nil
}

func (e *Entropy) source() entropy.Config {
	return entropy.Config{
		URL:     e.URL,
		APIKey:  e.APIKey,
		Timeout: e.Timeout,
		Refresh: e.Refresh,
		Purpose: "session-keys",
	}
}

// Logging is the logging configuration.
type Logging struct {
	// File is the rotating log file. Empty logs to stdout only.
	File string

	// Level is "level" or "level,SUBSYS=level,...".
	Level string
}

func (l *Logging) validate() error {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	_, _, err := parseLevels(l.Level)
	return err
}

// Config is the client configuration file.
type Config struct {
	Relay   *Relay
	Entropy *Entropy
	Logging *Logging
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := new(Config)
	if err := cfg.FixupAndValidate(); err != nil {
		panic(err)
	}
	return cfg
}

// FixupAndValidate applies defaults to config entries and validates the
// configuration sections.
func (c *Config) FixupAndValidate() error {
	// Handle missing sections if possible.
	if c.Relay == nil {
		c.Relay = new(Relay)
	}
	if c.Entropy == nil {
		c.Entropy = new(Entropy)
	}
	if c.Logging == nil {
		c.Logging = new(Logging)
	}
	c.Relay.fixup()

	if err := c.Relay.validate(); err != nil {
		return err
	}
	if err := c.Entropy.validate(); err != nil {
		return err
	}
	return c.Logging.validate()
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: unknown keys %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses, and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

// LoadHome loads path if given, otherwise home/config.toml if it exists,
// otherwise the defaults.
func LoadHome(home, path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	cfg, err := LoadFile(filepath.Join(home, ConfigFilename))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// parseLevels splits a "level,SUBSYS=level" string.
func parseLevels(s string) (slog.Level, map[string]slog.Level, error) {
	def := slog.LevelInfo
	subs := make(map[string]slog.Level)
	for _, v := range strings.Split(s, ",") {
		fields := strings.Split(v, "=")
		switch len(fields) {
		case 1:
			l, ok := slog.LevelFromString(fields[0])
			if !ok {
				return 0, nil, fmt.Errorf("config: Logging: unknown level %q", fields[0])
			}
			def = l
		case 2:
			l, ok := slog.LevelFromString(fields[1])
			if !ok {
				return 0, nil, fmt.Errorf("config: Logging: unknown level %q", fields[1])
			}
			subs[fields[0]] = l
		default:
			return 0, nil, fmt.Errorf("unable to parse %q as subsys=level debuglevel string", v)
		}
	}
	return def, subs, nil
}
