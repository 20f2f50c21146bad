package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrConfigNotFound = errors.New("config file not found")

// Config holds the global service configuration
type Config struct {
	// General configuration
	General struct {
		// NodeID identifies this instance; derived from the machine id when empty
		NodeID string `yaml:"nodeId"`

		// LogLevel is the logging level
		LogLevel string `yaml:"logLevel"`
	} `yaml:"general"`

	// Watch configuration
	Watch struct {
		// Paths are watched at startup
		Paths []string `yaml:"paths"`

		// AutoShow reveals a file's viewer whenever it changes
		AutoShow bool `yaml:"autoShow"`

		// Debounce coalesces bursts of writes per file; 0 disables it
		Debounce time.Duration `yaml:"debounce"`

		// Presets are well-known paths addressable by name
		Presets map[string]string `yaml:"presets"`
	} `yaml:"watch"`

	// Viewer configuration
	Viewer struct {
		// Console mirrors viewer output to stdout
		Console bool `yaml:"console"`

		// MaxBufferBytes bounds each viewer's buffer; 0 means unbounded
		MaxBufferBytes int `yaml:"maxBufferBytes"`
	} `yaml:"viewer"`

	// Console command loop configuration
	Console struct {
		// Interactive reads watch/stop commands from stdin
		Interactive bool `yaml:"interactive"`
	} `yaml:"console"`

	// HTTP server configuration
	HTTP struct {
		// Enabled enables the HTTP server
		Enabled bool `yaml:"enabled"`

		// Address to bind the HTTP server
		Address string `yaml:"address"`

		// Port to bind the HTTP server
		Port int `yaml:"port"`

		// TLS enables TLS
		TLS bool `yaml:"tls"`

		// CertFile is the TLS certificate path
		CertFile string `yaml:"certFile"`

		// KeyFile is the TLS private key path
		KeyFile string `yaml:"keyFile"`

		// JWT configuration
		JWT struct {
			// Secret is the signing key for tokens
			Secret string `yaml:"secret"`

			// ExpirationMinutes is the token validity duration
			ExpirationMinutes int `yaml:"expirationMinutes"`
		} `yaml:"jwt"`
	} `yaml:"http"`

	// gRPC server configuration
	GRPC struct {
		// Enabled enables the gRPC health server
		Enabled bool `yaml:"enabled"`

		// Address to bind the gRPC server
		Address string `yaml:"address"`

		// Port to bind the gRPC server
		Port int `yaml:"port"`
	} `yaml:"grpc"`

	// Security configuration
	Security struct {
		// EnableAuthentication requires a bearer token on the HTTP API
		EnableAuthentication bool `yaml:"enableAuthentication"`

		// Users maps API usernames to argon2id hashes from -hash-password
		Users map[string]string `yaml:"users"`
	} `yaml:"security"`

	Logging struct {
		Level       string `yaml:"level"` // "ERROR", "WARN", "INFO", "DEBUG"
		ChannelSize int    `yaml:"channelSize"`
		Format      string `yaml:"format"` // "json", "text"
		Output      string `yaml:"output"` // "stdout", "stderr", "file"
		FilePath    string `yaml:"filePath"`
	} `yaml:"logging"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	c := &Config{}

	// General configuration
	c.General.NodeID = ""
	c.General.LogLevel = "info"

	// Watch configuration
	c.Watch.Paths = []string{}
	c.Watch.AutoShow = true
	c.Watch.Debounce = 0
	c.Watch.Presets = map[string]string{
		"nginx-access": "/var/log/nginx/access.log",
		"nginx-error":  "/var/log/nginx/error.log",
	}

	// Viewer configuration
	c.Viewer.Console = true
	c.Viewer.MaxBufferBytes = 1 << 20

	c.Console.Interactive = false

	// HTTP server configuration
	c.HTTP.Enabled = true
	c.HTTP.Address = "127.0.0.1"
	c.HTTP.Port = 8080
	c.HTTP.TLS = false
	c.HTTP.CertFile = ""
	c.HTTP.KeyFile = ""
	c.HTTP.JWT.Secret = "changeme"
	c.HTTP.JWT.ExpirationMinutes = 60

	// gRPC server configuration
	c.GRPC.Enabled = false
	c.GRPC.Address = "127.0.0.1"
	c.GRPC.Port = 50051

	// Security configuration
	c.Security.EnableAuthentication = false
	c.Security.Users = make(map[string]string)

	// Logging configuration defaults
	c.Logging.Level = "INFO"
	c.Logging.ChannelSize = 1000
	c.Logging.Format = "json"
	c.Logging.Output = "stderr"
	c.Logging.FilePath = ""

	return c
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Load the default configuration
	config := DefaultConfig()

	// Decode the YAML file
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Relative watch paths are relative to the config file
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	for i, p := range config.Watch.Paths {
		if p != "" && !filepath.IsAbs(p) {
			config.Watch.Paths[i] = filepath.Join(dir, p)
		}
	}

	if config.Logging.Output == "file" && config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(dir, config.Logging.FilePath)
	}

	// Validate the configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	// Encode the configuration to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// Create parent directory if necessary
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks a configuration built outside LoadConfig
func Validate(config *Config) error {
	return validateConfig(config)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	// Check the log level
	logLevel := strings.ToLower(config.General.LogLevel)
	if logLevel != "debug" && logLevel != "info" && logLevel != "warn" && logLevel != "error" {
		return fmt.Errorf("invalid log level: %s", config.General.LogLevel)
	}

	// Check the logging sink
	format := strings.ToLower(config.Logging.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	output := strings.ToLower(config.Logging.Output)
	if output != "stdout" && output != "stderr" && output != "file" {
		return fmt.Errorf("invalid log output: %s", config.Logging.Output)
	}
	if output == "file" && config.Logging.FilePath == "" {
		return fmt.Errorf("log output is file but no filePath specified")
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("invalid watch debounce: %s", config.Watch.Debounce)
	}

	for name, path := range config.Watch.Presets {
		if name == "" || path == "" {
			return fmt.Errorf("invalid watch preset %q: %q", name, path)
		}
	}

	if config.Viewer.MaxBufferBytes < 0 {
		return fmt.Errorf("invalid viewer maxBufferBytes: %d", config.Viewer.MaxBufferBytes)
	}

	// check ports
	if config.HTTP.Enabled && (config.HTTP.Port < 1 || config.HTTP.Port > 65535) {
		return fmt.Errorf("invalid HTTP port: %d", config.HTTP.Port)
	}

	if config.GRPC.Enabled && (config.GRPC.Port < 1 || config.GRPC.Port > 65535) {
		return fmt.Errorf("invalid gRPC port: %d", config.GRPC.Port)
	}

	if config.Security.EnableAuthentication && config.HTTP.JWT.Secret == "" {
		return fmt.Errorf("authentication enabled but no JWT secret specified")
	}

	for username, hash := range config.Security.Users {
		if username == "" || !strings.Contains(hash, "$") {
			return fmt.Errorf("invalid password hash for user %q", username)
		}
	}

	// Check the TLS configurations
	if config.HTTP.TLS {
		if config.HTTP.CertFile == "" || config.HTTP.KeyFile == "" {
			return fmt.Errorf("TLS enabled but certificate or key file not specified")
		}
		if _, err := os.Stat(config.HTTP.CertFile); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", config.HTTP.CertFile)
		}
		if _, err := os.Stat(config.HTTP.KeyFile); os.IsNotExist(err) {
			return fmt.Errorf("key file not found: %s", config.HTTP.KeyFile)
		}
	}

	return nil
}
