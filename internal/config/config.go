package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// App configures one embedded application instance.
type App struct {
	AppID   string `toml:"app_id"`
	AppName string `toml:"app_name"`
	Version string `toml:"version"`

	HostURL string `toml:"host_url"`
	Origin  string `toml:"origin"`

	// DeferredInit postpones the handshake until Initialize is called
	// explicitly instead of firing at startup.
	DeferredInit bool     `toml:"deferred_init"`
	Expects      []string `toml:"expects"`

	InitializeTimeout string `toml:"initialize_timeout"`
	CallTimeout       string `toml:"call_timeout"`
}

// Host configures the simulated host frame served by hostctl.
type Host struct {
	Name           string   `toml:"name"`
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`

	// Capabilities is the matrix announced to every attaching frame; an
	// area maps to a bare boolean or a table of feature booleans.
	Capabilities map[string]any    `toml:"capabilities"`
	Context      map[string]string `toml:"context"`
}

func LoadApp(path string) (App, error) {
	var cfg App
	if err := loadToml(path, &cfg); err != nil {
		return App{}, err
	}
	applyAppDefaults(&cfg)
	if err := ValidateApp(cfg); err != nil {
		return App{}, err
	}
	return cfg, nil
}

func LoadHost(path string) (Host, error) {
	var cfg Host
	if err := loadToml(path, &cfg); err != nil {
		return Host{}, err
	}
	applyHostDefaults(&cfg)
	return cfg, nil
}

// DefaultApp returns a runnable demo configuration.
func DefaultApp() App {
	cfg := App{AppID: "embedctl-demo"}
	applyAppDefaults(&cfg)
	return cfg
}

// DefaultHost returns a runnable demo configuration with a permissive origin
// policy and a search-capable matrix.
func DefaultHost() Host {
	cfg := Host{
		Capabilities: map[string]any{"search": true},
		Context:      map[string]string{"theme": "default", "locale": "en-US"},
	}
	applyHostDefaults(&cfg)
	return cfg
}

func applyAppDefaults(cfg *App) {
	if cfg.AppName == "" {
		cfg.AppName = cfg.AppID
	}
	if cfg.Version == "" {
		cfg.Version = "0.0.1"
	}
	if cfg.HostURL == "" {
		cfg.HostURL = "ws://127.0.0.1:9400/attach"
	}
	if cfg.Origin == "" {
		cfg.Origin = "http://localhost"
	}
	if cfg.InitializeTimeout == "" {
		cfg.InitializeTimeout = "5s"
	}
	if cfg.CallTimeout == "" {
		cfg.CallTimeout = "10s"
	}
}

func applyHostDefaults(cfg *Host) {
	if cfg.Name == "" {
		cfg.Name = "hostctl"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9400"
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{"*"}
	}
}

func ValidateApp(cfg App) error {
	if strings.TrimSpace(cfg.AppID) == "" {
		return fmt.Errorf("config: app_id is required")
	}
	if _, err := cfg.Timeouts(); err != nil {
		return err
	}
	return nil
}

// Timeouts holds the parsed deadline configuration.
type Timeouts struct {
	Initialize time.Duration
	Call       time.Duration
}

func (cfg App) Timeouts() (Timeouts, error) {
	init, err := time.ParseDuration(cfg.InitializeTimeout)
	if err != nil {
		return Timeouts{}, fmt.Errorf("config: invalid initialize_timeout %q: %w", cfg.InitializeTimeout, err)
	}
	call, err := time.ParseDuration(cfg.CallTimeout)
	if err != nil {
		return Timeouts{}, fmt.Errorf("config: invalid call_timeout %q: %w", cfg.CallTimeout, err)
	}
	return Timeouts{Initialize: init, Call: call}, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
