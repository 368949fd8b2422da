package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// cosmeticCandidates are the variation fields that may be declared cosmetic.
var cosmeticCandidates = []string{"name", "value", "description"}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	// FK_TARGETING_API_PORT overrides targeting_api.port
	v.SetEnvPrefix("FK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		TargetingAPI: TargetingAPIConfig{
			Host:            v.GetString("targeting_api.host"),
			Port:            v.GetInt("targeting_api.port"),
			MaxConnections:  v.GetInt("targeting_api.max_connections"),
			RequestTimeout:  v.GetDuration("targeting_api.request_timeout"),
			MaxMessageBytes: v.GetInt("targeting_api.max_message_bytes"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Addr:    v.GetString("metrics.addr"),
			Path:    v.GetString("metrics.path"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
			Insecure:     v.GetBool("telemetry.insecure"),
			ServiceName:  v.GetString("telemetry.service_name"),
			SampleRatio:  v.GetFloat64("telemetry.sample_ratio"),
		},
		Editor: EditorConfig{
			Language:                v.GetString("editor.language"),
			CosmeticVariationFields: v.GetStringSlice("editor.cosmetic_variation_fields"),
		},
		Client: ClientConfig{
			Address:        v.GetString("client.address"),
			Timeout:        v.GetDuration("client.timeout"),
			MaxRetries:     v.GetInt("client.max_retries"),
			RetryBaseDelay: v.GetDuration("client.retry_base_delay"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("targeting_api.host", d.TargetingAPI.Host)
	v.SetDefault("targeting_api.port", d.TargetingAPI.Port)
	v.SetDefault("targeting_api.max_connections", d.TargetingAPI.MaxConnections)
	v.SetDefault("targeting_api.request_timeout", d.TargetingAPI.RequestTimeout.String())
	v.SetDefault("targeting_api.max_message_bytes", d.TargetingAPI.MaxMessageBytes)

	v.SetDefault("database.url", d.Database.URL)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.sample_ratio", d.Telemetry.SampleRatio)

	v.SetDefault("editor.language", d.Editor.Language)
	v.SetDefault("editor.cosmetic_variation_fields", d.Editor.CosmeticVariationFields)

	v.SetDefault("client.address", d.Client.Address)
	v.SetDefault("client.timeout", d.Client.Timeout.String())
	v.SetDefault("client.max_retries", d.Client.MaxRetries)
	v.SetDefault("client.retry_base_delay", d.Client.RetryBaseDelay.String())
}

// validateConfig checks ranges and enumerations.
func validateConfig(cfg *Config) error {
	api := cfg.TargetingAPI
	if api.Port <= 0 || api.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", api.Port)
	}
	if api.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", api.MaxConnections)
	}
	if api.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", api.RequestTimeout)
	}
	if api.MaxMessageBytes <= 0 {
		return fmt.Errorf("max_message_bytes must be positive, got %d", api.MaxMessageBytes)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1, got %v", cfg.Telemetry.SampleRatio)
	}
	for _, f := range cfg.Editor.CosmeticVariationFields {
		if !slices.Contains(cosmeticCandidates, f) {
			return fmt.Errorf("editor.cosmetic_variation_fields: unknown variation field %q (expected one of %s)", f, strings.Join(cosmeticCandidates, ", "))
		}
	}
	if cfg.Client.MaxRetries < 0 {
		return fmt.Errorf("client.max_retries must not be negative, got %d", cfg.Client.MaxRetries)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets. Only keys
// read from the file count; FK_HMAC_SECRET in the environment is expected.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("targeting_api.hmac_secret") || v.InConfig("client.api_key") {
		return fmt.Errorf("secrets not allowed in config files (use FK_HMAC_SECRET / FK_API_KEY environment variables)")
	}
	return nil
}
