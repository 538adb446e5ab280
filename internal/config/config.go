package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	GeoIP      GeoIPConfig       `yaml:"geoip"`
	Blacklist  BlacklistConfig   `yaml:"blacklist"`
	Collectors []CollectorConfig `yaml:"collectors"`
	Tester     TesterConfig      `yaml:"tester"`
	Output     OutputConfig      `yaml:"output"`
	Publishers []PublisherConfig `yaml:"publishers"`
}

type DatabaseConfig struct {
	Path      string `yaml:"path"`
	PruneDays int    `yaml:"prune_days"`
}

type GeoIPConfig struct {
	CountryPath string        `yaml:"country_path"`
	DNSTimeout  time.Duration `yaml:"dns_timeout"`
}

type BlacklistConfig struct {
	// Sources are http(s) URLs or local file paths of CIDR lists.
	Sources []string `yaml:"sources"`
}

type CollectorConfig struct {
	Name   string                 `yaml:"name"`
	Type   string                 `yaml:"type"`
	Params map[string]interface{} `yaml:"params"`
}

type TesterConfig struct {
	CheckURLs []string `yaml:"check_urls"`

	// Quick phase
	QuickMethod       string        `yaml:"quick_method"`
	QuickTimeout      time.Duration `yaml:"quick_timeout"`
	QuickThreshold    time.Duration `yaml:"quick_threshold"`
	MinQuickSuccesses int           `yaml:"min_quick_successes"`
	QuickRate         float64       `yaml:"quick_rate"` // requests per second, 0 = unlimited

	// Full phase
	Engine         string        `yaml:"engine"` // process | embedded
	EnginePath     string        `yaml:"engine_path"`
	EngineArgs     []string      `yaml:"engine_args"`
	Warmup         time.Duration `yaml:"warmup"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	FullTimeout    time.Duration `yaml:"full_timeout"`
	FullThreshold  time.Duration `yaml:"full_threshold"`

	Workers       int `yaml:"workers"`
	ShortlistSize int `yaml:"shortlist_size"`
	Target        int `yaml:"target"`

	PortBase  int `yaml:"port_base"`
	PortRange int `yaml:"port_range"`
}

type OutputConfig struct {
	Name            string `yaml:"name"`
	TopLimits       []int  `yaml:"top_limits"`
	HealthCheckURL  string `yaml:"health_check_url"`
	HealthInterval  int    `yaml:"health_interval"`
	MinCountryGroup int    `yaml:"min_country_group"`
	MinUnknownGroup int    `yaml:"min_unknown_group"`
}

type PublisherConfig struct {
	Name      string                 `yaml:"name"`
	Type      string                 `yaml:"type"`
	Groupings []string               `yaml:"groupings"`
	Params    map[string]interface{} `yaml:"params"`
}

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	var cfg Config
	cfg.Database.Path = "fastnodes.db"
	cfg.Database.PruneDays = 7
	cfg.GeoIP.CountryPath = "GeoLite2-Country.mmdb"
	cfg.GeoIP.DNSTimeout = 3 * time.Second

	cfg.Tester.CheckURLs = []string{
		"http://cp.cloudflare.com/generate_204",
		"http://www.gstatic.com/generate_204",
		"http://www.google.com/generate_204",
	}
	cfg.Tester.QuickMethod = "GET"
	cfg.Tester.QuickTimeout = 3 * time.Second
	cfg.Tester.QuickThreshold = 1500 * time.Millisecond
	cfg.Tester.MinQuickSuccesses = 2

	cfg.Tester.Engine = "process"
	cfg.Tester.EnginePath = "xray"
	cfg.Tester.EngineArgs = []string{"run", "-c", "{config}"}
	cfg.Tester.Warmup = 1500 * time.Millisecond
	cfg.Tester.RequestTimeout = 5 * time.Second
	cfg.Tester.FullTimeout = 20 * time.Second
	cfg.Tester.FullThreshold = 1500 * time.Millisecond

	cfg.Tester.Workers = 20
	cfg.Tester.ShortlistSize = 500
	cfg.Tester.Target = 200
	cfg.Tester.PortBase = 20000
	cfg.Tester.PortRange = 10000

	cfg.Output.Name = "FastNodes"
	cfg.Output.TopLimits = []int{50, 100, 150, 200}
	cfg.Output.HealthCheckURL = "http://cp.cloudflare.com/generate_204"
	cfg.Output.HealthInterval = 300
	cfg.Output.MinCountryGroup = 5
	cfg.Output.MinUnknownGroup = 10
	return &cfg
}

// Load reads the YAML config at path over the defaults, then applies
// environment overrides and validates. A missing default config.yaml is not
// an error so environment-only runs work.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config yaml: %w", err)
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if src := getenv("FASTNODES_SOURCES"); src != "" {
		fields := strings.FieldsFunc(src, func(r rune) bool {
			return r == '\n' || r == '\r' || r == ',' || r == ' '
		})
		for i, u := range fields {
			if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
				continue
			}
			c.Collectors = append(c.Collectors, CollectorConfig{
				Name:   fmt.Sprintf("env-%d", i+1),
				Type:   "http",
				Params: map[string]interface{}{"url": u},
			})
		}
	}
	if v := getenv("FASTNODES_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Tester.Workers = n
		}
	}
	if v := getenv("FASTNODES_ENGINE_PATH"); v != "" {
		c.Tester.EnginePath = v
	}
}

// Validate checks the tester and output sections, clamping soft limits.
func (c *Config) Validate() error {
	t := &c.Tester
	if len(t.CheckURLs) == 0 {
		return fmt.Errorf("tester.check_urls must not be empty")
	}
	if t.MinQuickSuccesses < 1 || t.MinQuickSuccesses > len(t.CheckURLs) {
		return fmt.Errorf("tester.min_quick_successes must be between 1 and %d, got %d", len(t.CheckURLs), t.MinQuickSuccesses)
	}
	if t.Workers <= 0 {
		return fmt.Errorf("tester.workers must be positive, got %d", t.Workers)
	}
	if t.ShortlistSize <= 0 {
		return fmt.Errorf("tester.shortlist_size must be positive, got %d", t.ShortlistSize)
	}
	if t.Target <= 0 || t.Target > t.ShortlistSize {
		t.Target = t.ShortlistSize
	}
	if t.PortBase <= 0 || t.PortRange <= 0 || t.PortBase+t.PortRange > 65536 {
		return fmt.Errorf("tester port range %d+%d is outside 1-65535", t.PortBase, t.PortRange)
	}
	switch t.Engine {
	case "process", "embedded":
	default:
		return fmt.Errorf("unknown tester.engine %q", t.Engine)
	}
	switch strings.ToUpper(t.QuickMethod) {
	case "GET", "HEAD":
		t.QuickMethod = strings.ToUpper(t.QuickMethod)
	default:
		return fmt.Errorf("tester.quick_method must be GET or HEAD, got %q", t.QuickMethod)
	}
	for _, n := range c.Output.TopLimits {
		if n <= 0 {
			return fmt.Errorf("output.top_limits must be positive, got %d", n)
		}
	}
	return nil
}

func (c *Config) FilterCollectors(names []string) {
	if len(names) == 0 {
		return
	}
	whitelist := make(map[string]bool)
	for _, n := range names {
		whitelist[n] = true
	}
	var filtered []CollectorConfig
	for _, item := range c.Collectors {
		if whitelist[item.Name] {
			filtered = append(filtered, item)
		}
	}
	c.Collectors = filtered
}

func (c *Config) FilterPublishers(names []string) {
	if len(names) == 0 {
		return
	}
	whitelist := make(map[string]bool)
	for _, n := range names {
		whitelist[n] = true
	}
	var filtered []PublisherConfig
	for _, item := range c.Publishers {
		if whitelist[item.Name] {
			filtered = append(filtered, item)
		}
	}
	c.Publishers = filtered
}
