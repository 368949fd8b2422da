// Package config provides configuration management for flagkeeper services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the full flagkeeper configuration.
type Config struct {
	TargetingAPI TargetingAPIConfig
	Database     DatabaseConfig
	Metrics      MetricsConfig
	Telemetry    TelemetryConfig
	Editor       EditorConfig
	Client       ClientConfig
}

// TargetingAPIConfig holds configuration for the gRPC targeting API service.
type TargetingAPIConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
	// MaxMessageBytes caps request size; one configuration per request.
	MaxMessageBytes int
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	URL string
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Addr    string
	Path    string
}

// TelemetryConfig controls trace export. An empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
	ServiceName  string
	SampleRatio  float64
}

// EditorConfig holds engine settings shared by CLI and service.
type EditorConfig struct {
	Language                string
	CosmeticVariationFields []string
}

// ClientConfig holds settings for talking to a remote targeting API.
type ClientConfig struct {
	Address        string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		TargetingAPI: TargetingAPIConfig{
			Host:            "0.0.0.0",
			Port:            50061,
			MaxConnections:  1000,
			RequestTimeout:  30 * time.Second,
			MaxMessageBytes: 4 << 20,
		},
		Database: DatabaseConfig{
			URL: "sqlite://flagkeeper.db",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "0.0.0.0:9464",
			Path:    "/metrics",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "flagkeeper",
			SampleRatio: 1.0,
		},
		Editor: EditorConfig{
			Language:                "en",
			CosmeticVariationFields: []string{"value", "description"},
		},
		Client: ClientConfig{
			Address:        "localhost:50061",
			Timeout:        10 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: 200 * time.Millisecond,
		},
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports FK_HMAC_SECRET (single) and FK_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are 32 hex chars matching the API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(key, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' found in environment variables (check FK_HMAC_SECRET and FK_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
		return nil
	}

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("FK_HMAC_SECRET"); val != "" {
		if err := add("FK_HMAC_SECRET", val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets keep old and new keys valid during rotation
	for i := 1; ; i++ {
		key := fmt.Sprintf("FK_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 lowercase hex chars.
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return secretID, secret, nil
}
