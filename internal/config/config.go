package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MnemonicEnv names the environment variable holding the signing phrase.
const MnemonicEnv = "ZKV_MNEMONIC"

// Config application configuration structure
type Config struct {
	Explorer  ExplorerConfig  `yaml:"explorer"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Prover    ProverConfig    `yaml:"prover"`
	Chain     ChainConfig     `yaml:"chain"`
	Storage   StorageConfig   `yaml:"storage"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Events    EventsConfig    `yaml:"events"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ExplorerConfig proof explorer the request pages are rendered from
type ExplorerConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

// RendererConfig headless browser configuration
type RendererConfig struct {
	Mode        string   `yaml:"mode"` // exec | devtools
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	DevToolsURL string   `yaml:"devtoolsUrl"`
	Timeout     int      `yaml:"timeout"` // seconds
}

// ExtractorConfig keyword proximity search tuning
type ExtractorConfig struct {
	Keywords     []string `yaml:"keywords"`
	WindowBefore int      `yaml:"windowBefore"`
	WindowAfter  int      `yaml:"windowAfter"`
}

// FetcherConfig artifact download configuration
type FetcherConfig struct {
	Timeout int `yaml:"timeout"` // seconds
}

// ProverConfig proving-system collaborator configuration
type ProverConfig struct {
	Mode    string   `yaml:"mode"` // exec | http
	Command []string `yaml:"command"`
	BaseURL string   `yaml:"baseUrl"`
	Timeout int      `yaml:"timeout"` // seconds
}

// ChainConfig verification chain endpoint and call layout
type ChainConfig struct {
	WsURL      string `yaml:"wsUrl"`
	Pallet     string `yaml:"pallet"`
	Call       string `yaml:"call"`
	SS58Prefix uint16 `yaml:"ss58Prefix"`
	FallbackVk string `yaml:"fallbackVk"`
}

// StorageConfig where the serve command keeps proof files
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// LedgerConfig submission ledger backing store
type LedgerConfig struct {
	Driver string `yaml:"driver"` // pebble | postgres | none
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// EventsConfig pipeline event sink
type EventsConfig struct {
	Driver     string `yaml:"driver"` // none | nats | amqp
	URL        string `yaml:"url"`
	Subject    string `yaml:"subject"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routingKey"`
	Timeout    int    `yaml:"timeout"` // seconds
}

// LogConfig logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
	File   string `yaml:"file"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwtSecret"`
	// MetricsAllowedIPs may scrape /metrics in addition to localhost.
	// Entries are addresses or CIDR ranges.
	MetricsAllowedIPs []string `yaml:"metricsAllowedIps"`
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// MetricsConfig textfile export for one-shot CLI runs
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		Explorer: ExplorerConfig{BaseURL: "https://explorer.succinct.xyz"},
		Renderer: RendererConfig{
			Mode:        "exec",
			Command:     "chromium-browser",
			Args:        []string{"--headless", "--disable-gpu", "--no-sandbox", "--dump-dom"},
			DevToolsURL: "http://127.0.0.1:9222",
			Timeout:     60,
		},
		Extractor: ExtractorConfig{
			Keywords:     []string{"Program Blobstream", "Blobstream", "Program"},
			WindowBefore: 1000,
			WindowAfter:  2000,
		},
		Fetcher: FetcherConfig{Timeout: 300},
		Prover: ProverConfig{
			Mode:    "exec",
			Command: []string{"sp1-zkv-shrink"},
			Timeout: 600,
		},
		Chain: ChainConfig{
			WsURL:      "wss://zkverify-volta-rpc.zkverify.io",
			Pallet:     "SettlementSp1Pallet",
			Call:       "submit_proof",
			SS58Prefix: 251,
		},
		Storage: StorageConfig{Dir: "data/proofs"},
		Ledger:  LedgerConfig{Driver: "pebble", Path: "data/ledger"},
		Events: EventsConfig{
			Driver:     "none",
			Subject:    "zkv.router.events",
			Exchange:   "zkv.router",
			RoutingKey: "pipeline",
			Timeout:    10,
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Host: "0.0.0.0", Port: 8085},
	}
}

// LoadConfig Load configuration file. An empty path means config.local.yaml
// or config.yaml, whichever exists first; neither existing is not an error.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	overrideFromEnv(cfg)
	return cfg, nil
}

// Mnemonic reads the signing phrase. Only chain operations call this.
func Mnemonic() (string, error) {
	m := strings.TrimSpace(os.Getenv(MnemonicEnv))
	if m == "" {
		return "", fmt.Errorf("%s environment variable not set", MnemonicEnv)
	}
	return m, nil
}

// overrideFromEnv Override configuration from environment
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("EXPLORER_BASE_URL"); v != "" {
		cfg.Explorer.BaseURL = v
	}
	if v := os.Getenv("ZKV_WS_URL"); v != "" {
		cfg.Chain.WsURL = v
	}
	if v := os.Getenv("RENDERER_MODE"); v != "" {
		cfg.Renderer.Mode = v
	}
	if v := os.Getenv("RENDERER_DEVTOOLS_URL"); v != "" {
		cfg.Renderer.DevToolsURL = v
	}
	if v := os.Getenv("PROVER_BASE_URL"); v != "" {
		cfg.Prover.BaseURL = v
		cfg.Prover.Mode = "http"
	}

	// Ledger
	if v := os.Getenv("LEDGER_DRIVER"); v != "" {
		cfg.Ledger.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Ledger.DSN = v
	}

	// Events
	if v := os.Getenv("EVENTS_DRIVER"); v != "" {
		cfg.Events.Driver = v
	}
	if v := os.Getenv("NATS_URL"); v != "" && cfg.Events.Driver == "nats" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" && cfg.Events.Driver == "amqp" {
		cfg.Events.URL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// server configuration
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("METRICS_ALLOWED_IPS"); v != "" {
		cfg.Server.MetricsAllowedIPs = splitList(v)
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
