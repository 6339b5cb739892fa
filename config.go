// Copyright 2026 The LedgerView Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledgerview

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the client core's configuration
type Config struct {
	API           APIConfig
	Credentials   CredentialsConfig
	Gateway       GatewayConfig
	Login         LoginConfig
	Observability ObservabilityConfig
}

// APIConfig holds remote collaborator configuration
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CredentialsConfig holds local credential storage configuration
type CredentialsConfig struct {
	// Path of the credential file. Empty selects a file under the
	// user's config directory; memory-only storage is the automatic
	// fallback when the filesystem is unavailable.
	Path string

	// Passphrase enables at-rest encryption when non-empty.
	Passphrase string
}

// GatewayConfig holds outbound request configuration
type GatewayConfig struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// LoginConfig holds local login throttling configuration
type LoginConfig struct {
	AttemptsPerMinute float64
	Burst             int
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL: getEnv("LEDGERVIEW_API_BASE_URL", ""),
			Timeout: parseDuration("LEDGERVIEW_API_TIMEOUT", "15s"),
		},
		Credentials: CredentialsConfig{
			Path:       getEnv("LEDGERVIEW_CREDENTIALS_PATH", defaultCredentialsPath()),
			Passphrase: getEnv("LEDGERVIEW_CREDENTIALS_PASSPHRASE", ""),
		},
		Gateway: GatewayConfig{
			Timeout:           parseDuration("LEDGERVIEW_GATEWAY_TIMEOUT", "30s"),
			RequestsPerSecond: float64(parseInt("LEDGERVIEW_GATEWAY_RPS", 0)),
			Burst:             parseInt("LEDGERVIEW_GATEWAY_BURST", 0),
		},
		Login: LoginConfig{
			AttemptsPerMinute: float64(parseInt("LEDGERVIEW_LOGIN_ATTEMPTS_PER_MINUTE", 10)),
			Burst:             parseInt("LEDGERVIEW_LOGIN_BURST", 5),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "ledgerview-client"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("LEDGERVIEW_API_BASE_URL is required")
	}
	return nil
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ledgerview", "credentials")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
