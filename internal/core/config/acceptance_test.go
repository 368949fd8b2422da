package config

import (
	"testing"
)

// TestAcceptanceCriteria verifies the configuration acceptance criteria.
func TestAcceptanceCriteria(t *testing.T) {
	t.Run("AC1: Environment variable FK_HMAC_SECRET accessible via HMACSecrets", func(t *testing.T) {
		t.Setenv("FK_HMAC_SECRET", testSecretA)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("AC1 FAIL: HMACSecrets error: %v", err)
		}
		if _, ok := secrets["0123456789abcdef0123456789abcdef"]; !ok {
			t.Fatal("AC1 FAIL: Secret not accessible")
		}
	})

	t.Run("AC2: Config file with hmac_secret rejected with clear error", func(t *testing.T) {
		path := writeConfig(t, `targeting_api:
  host: "localhost"
  port: 8080
  hmac_secret: "should_be_rejected"
`)
		_, err := LoadConfig(path)
		if err == nil {
			t.Fatal("AC2 FAIL: Expected error for secret in config file")
		}
		if err.Error() != "secrets not allowed in config files (use FK_HMAC_SECRET / FK_API_KEY environment variables)" {
			t.Fatalf("AC2 FAIL: Wrong error message: %v", err)
		}
	})

	t.Run("AC3: HMAC secret in environment does not trip the config file check", func(t *testing.T) {
		t.Setenv("FK_HMAC_SECRET", testSecretA)

		if _, err := LoadConfig(""); err != nil {
			t.Fatalf("AC3 FAIL: LoadConfig error: %v", err)
		}
	})

	t.Run("AC4: Environment overrides config file", func(t *testing.T) {
		t.Setenv("FK_TARGETING_API_PORT", "8080")
		path := writeConfig(t, "targeting_api:\n  port: 9090\n")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("AC4 FAIL: LoadConfig error: %v", err)
		}
		if cfg.TargetingAPI.Port != 8080 {
			t.Fatalf("AC4 FAIL: Expected 8080, got %d", cfg.TargetingAPI.Port)
		}
	})
}
