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

package metrics

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter holds the core's instruments. All instruments come from the global
// meter provider; hosts that never configure one get no-op instruments.
type Meter struct {
	meter metric.Meter

	RefreshTotal      metric.Int64Counter
	UnauthorizedTotal metric.Int64Counter
	RetriesTotal      metric.Int64Counter
	LoginFailures     metric.Int64Counter
	RequestDuration   metric.Float64Histogram
}

// New creates the meter and its instruments
func New(cfg Config, serviceName string) (*Meter, error) {
	name := serviceName
	if !cfg.Enabled {
		name = "noop"
	}
	meter := otel.Meter(name)

	m := &Meter{meter: meter}

	var err error
	if m.RefreshTotal, err = m.counter("auth_refresh_total", "Token refresh attempts issued to the remote API"); err != nil {
		return nil, err
	}
	if m.UnauthorizedTotal, err = m.counter("auth_unauthorized_total", "401 responses observed on outbound calls"); err != nil {
		return nil, err
	}
	if m.RetriesTotal, err = m.counter("gateway_retries_total", "Requests retried after a successful refresh"); err != nil {
		return nil, err
	}
	if m.LoginFailures, err = m.counter("login_failures_total", "Login and registration attempts rejected by the remote API"); err != nil {
		return nil, err
	}
	m.RequestDuration, err = meter.Float64Histogram(
		"gateway_request_duration",
		metric.WithDescription("Outbound request duration through the gateway"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram gateway_request_duration: %w", err)
	}

	return m, nil
}

func (m *Meter) counter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}
