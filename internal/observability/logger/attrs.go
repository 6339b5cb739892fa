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

package logger

import "log/slog"

// Common attribute keys for consistent logging across the core

// Request attributes
func Endpoint(path string) slog.Attr {
	return slog.String("endpoint", path)
}

func Method(method string) slog.Attr {
	return slog.String("method", method)
}

func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

func Duration(ms int64) slog.Attr {
	return slog.Int64("duration_ms", ms)
}

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Identity attributes
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Email(email string) slog.Attr {
	return slog.String("email", email)
}

func CompanyID(id string) slog.Attr {
	return slog.String("company_id", id)
}

// Session attributes
func SessionStatus(status string) slog.Attr {
	return slog.String("session_status", status)
}

func TokenExpiry(unix int64) slog.Attr {
	return slog.Int64("token_expiry", unix)
}

// Error attributes
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func ErrorType(errType string) slog.Attr {
	return slog.String("error_type", errType)
}

// Component attributes
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Operation(op string) slog.Attr {
	return slog.String("operation", op)
}
