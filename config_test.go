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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("LEDGERVIEW_API_BASE_URL", "https://api.ledgerview.test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://api.ledgerview.test", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, float64(10), cfg.Login.AttemptsPerMinute)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.OTELEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("LEDGERVIEW_API_BASE_URL", "https://api.ledgerview.test")
	t.Setenv("LEDGERVIEW_API_TIMEOUT", "3s")
	t.Setenv("LEDGERVIEW_CREDENTIALS_PATH", "/tmp/lv-creds")
	t.Setenv("LEDGERVIEW_GATEWAY_RPS", "25")
	t.Setenv("LEDGERVIEW_LOGIN_ATTEMPTS_PER_MINUTE", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "/tmp/lv-creds", cfg.Credentials.Path)
	assert.Equal(t, float64(25), cfg.Gateway.RequestsPerSecond)
	assert.Equal(t, float64(3), cfg.Login.AttemptsPerMinute)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoadConfig_RequiresBaseURL(t *testing.T) {
	t.Setenv("LEDGERVIEW_API_BASE_URL", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_BadDurationFallsBack(t *testing.T) {
	t.Setenv("LEDGERVIEW_API_BASE_URL", "https://api.ledgerview.test")
	t.Setenv("LEDGERVIEW_API_TIMEOUT", "not-a-duration")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
}
