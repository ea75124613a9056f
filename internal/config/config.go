package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for pagebot.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Messenger MessengerConfig `json:"messenger"`
	Backend   BackendConfig   `json:"backend"`
	Store     StoreConfig     `json:"store"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel            string `json:"logLevel"`
	LogFile             string `json:"logFile,omitempty"` // optional log file path
	MaxConcurrentEvents int    `json:"maxConcurrentEvents"`
	// FallbackReply is sent to the user when reply generation fails
	// outright (backend down, run failed, poll timed out).
	FallbackReply string `json:"fallbackReply"`
	// NoReplyText is returned when the backend completes but produces no
	// usable text. A degenerate success, not a failure.
	NoReplyText string `json:"noReplyText"`
}

// MessengerConfig configures the inbound webhook and outbound Graph API.
type MessengerConfig struct {
	ListenAddr  string `json:"listenAddr"`
	WebhookPath string `json:"webhookPath"`
	// VerifyToken is the shared secret compared against hub.verify_token
	// during the subscription handshake.
	VerifyToken        string `json:"verifyToken"`
	GraphAPIBase       string `json:"graphApiBase,omitempty"`
	SendTimeoutSeconds int    `json:"sendTimeoutSeconds"`
}

// BackendConfig configures the conversational-AI backend.
type BackendConfig struct {
	APIBase               string `json:"apiBase,omitempty"`
	APIKey                string `json:"apiKey"`
	Model                 string `json:"model,omitempty"`
	PollIntervalMs        int    `json:"pollIntervalMs"`
	MaxPollAttempts       int    `json:"maxPollAttempts"`
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds"`
}

// StoreConfig configures the page profile store.
type StoreConfig struct {
	DBPath          string `json:"dbPath"`
	CacheTTLSeconds int    `json:"cacheTtlSeconds"`
	// SeedFile is an optional YAML file of page profiles upserted into
	// the store at startup.
	SeedFile string `json:"seedFile,omitempty"`
}

// MetricsConfig configures the Prometheus-text metrics endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.pagebot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pagebot"
	}
	return filepath.Join(home, ".pagebot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.Store.SeedFile = ExpandPath(cfg.Store.SeedFile)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.MaxConcurrentEvents < 1 || cfg.General.MaxConcurrentEvents > 100 {
		errs = append(errs, "general.maxConcurrentEvents must be between 1 and 100")
	}
	if cfg.Messenger.VerifyToken == "" {
		errs = append(errs, "messenger.verifyToken is required")
	}
	if cfg.Messenger.WebhookPath == "" || !strings.HasPrefix(cfg.Messenger.WebhookPath, "/") {
		errs = append(errs, "messenger.webhookPath must start with /")
	}
	if cfg.Messenger.SendTimeoutSeconds < 1 {
		errs = append(errs, "messenger.sendTimeoutSeconds must be >= 1")
	}
	if cfg.Backend.PollIntervalMs < 100 {
		errs = append(errs, "backend.pollIntervalMs must be >= 100")
	}
	if cfg.Backend.MaxPollAttempts < 1 || cfg.Backend.MaxPollAttempts > 300 {
		errs = append(errs, "backend.maxPollAttempts must be between 1 and 300")
	}
	if cfg.Backend.RequestTimeoutSeconds < 1 {
		errs = append(errs, "backend.requestTimeoutSeconds must be >= 1")
	}
	if cfg.Store.CacheTTLSeconds < 0 {
		errs = append(errs, "store.cacheTtlSeconds must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
