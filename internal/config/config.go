// Package config loads the warpcas daemon configuration from a YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/warpdl/warpcas/common"
	"github.com/warpdl/warpcas/pkg/casauth"
	"github.com/warpdl/warpcas/pkg/portal"
	"gopkg.in/yaml.v2"
)

const (
	ConfigEnv     = common.ConfigEnv
	ListenEnv     = common.ListenEnv
	RPCSecretEnv  = common.RPCSecretEnv
	ProxyEnv      = common.ProxyEnv
	DataDirEnv    = common.DataDirEnv
	DebugEnv      = common.DebugEnv
	SessionKeyEnv = common.SessionKeyEnv
)

const (
	DEF_LISTEN       = "127.0.0.1:3850"
	DEF_TIMEOUT      = 30 * time.Second
	DEF_RATE_LIMIT   = 10
	DEF_PENDING_TTL  = 5 * time.Minute
	DEF_SESSION_TTL  = 12 * time.Hour
	DEF_CONFIG_NAME  = "config.yaml"
	DEF_DATA_DIRNAME = "warpcas"
)

var ErrInvalidDuration = errors.New("config: invalid duration")

// Duration is a time.Duration that reads "30s" style strings from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Vault controls the session vault behind auth tokens.
type Vault struct {
	Enabled bool     `yaml:"enabled"`
	TTL     Duration `yaml:"ttl"`
	// Key is a hex encoded 32 byte key. When empty the key comes from the OS
	// keyring or a key file under the data dir.
	Key string `yaml:"key,omitempty"`
}

// Config is the daemon configuration.
type Config struct {
	Listen    string `yaml:"listen"`
	RPCSecret string `yaml:"rpc_secret"`
	Debug     bool   `yaml:"debug"`
	DataDir   string `yaml:"data_dir"`

	CAS casauth.Endpoints `yaml:"casauth"`
	// Domain is the campus domain used to build the built-in portal list
	// when Portals is empty.
	Domain  string           `yaml:"domain"`
	Portals []portal.Adapter `yaml:"portals"`

	Proxy   string   `yaml:"proxy"`
	Timeout Duration `yaml:"timeout"`
	// Headers override or extend the browser headers sent upstream.
	Headers casauth.Headers `yaml:"headers,omitempty"`

	// RateLimit is the number of login attempts allowed per id per minute.
	// Negative disables the limiter.
	RateLimit  int      `yaml:"rate_limit"`
	PendingTTL Duration `yaml:"pending_ttl"`
	Vault      Vault    `yaml:"vault"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

var userConfigDir = os.UserConfigDir

func defaultDataDir() string {
	dir, err := userConfigDir()
	if err != nil {
		return DEF_DATA_DIRNAME
	}
	return filepath.Join(dir, DEF_DATA_DIRNAME)
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DEF_LISTEN
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(DEF_TIMEOUT)
	}
	if c.RateLimit == 0 {
		c.RateLimit = DEF_RATE_LIMIT
	}
	if c.PendingTTL == 0 {
		c.PendingTTL = Duration(DEF_PENDING_TTL)
	}
	if c.Vault.TTL == 0 {
		c.Vault.TTL = Duration(DEF_SESSION_TTL)
	}
	if c.Domain == "" {
		c.Domain = domainOf(c.CAS.AuthServer)
	}
}

// domainOf strips the first label of the auth server host, so
// authserver.example.edu gives example.edu.
func domainOf(raw string) string {
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	host, _, _ := strings.Cut(raw, "/")
	host, _, _ = strings.Cut(host, ":")
	if _, rest, ok := strings.Cut(host, "."); ok && strings.Contains(rest, ".") {
		return rest
	}
	return host
}

// Load reads the YAML file at path from fs, then applies environment
// overrides and defaults. A missing file is not an error when path is empty
// or points at the default location.
func Load(fs afero.Fs, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(ConfigEnv)
		explicit = path != ""
	}
	if !explicit {
		path = filepath.Join(defaultDataDir(), DEF_CONFIG_NAME)
	}

	c := &Config{}
	data, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if err := yaml.UnmarshalStrict(data, c); err != nil {
			return nil, fmt.Errorf("error: failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("error: cannot read config %s: %w", path, err)
	}

	c.applyEnv(os.LookupEnv)
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(ListenEnv); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup(RPCSecretEnv); ok && v != "" {
		c.RPCSecret = v
	}
	if v, ok := lookup(ProxyEnv); ok {
		c.Proxy = v
	}
	if v, ok := lookup(DataDirEnv); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := lookup(DebugEnv); ok {
		b, err := strconv.ParseBool(v)
		c.Debug = err == nil && b
	}
	if v, ok := lookup(SessionKeyEnv); ok && v != "" {
		c.Vault.Key = v
	}
}

// Validate checks the fields the daemon cannot run without.
func (c *Config) Validate() error {
	if err := c.CAS.Validate(); err != nil {
		return err
	}
	for i := range c.Portals {
		if err := c.Portals[i].Validate(); err != nil {
			return fmt.Errorf("portal %d: %w", i, err)
		}
	}
	return nil
}

// Registry builds the portal registry from the configured adapters, or from
// the built-in list for Domain when none are configured.
func (c *Config) Registry() (*portal.Registry, error) {
	if len(c.Portals) == 0 {
		return portal.NewRegistry(portal.Defaults(c.Domain)...)
	}
	return portal.NewRegistry(c.Portals...)
}

// StorePath is the SQLite record store file.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "warpcas.db")
}

// LogPath is the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "warpcas.log")
}

// VaultPath is the session vault file.
func (c *Config) VaultPath() string {
	return filepath.Join(c.DataDir, "sessions.warp")
}

// Save writes c as YAML to path on fs, creating parent directories.
func Save(fs afero.Fs, path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0o600)
}
