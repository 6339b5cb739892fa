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

package authapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a non-2xx response from the LedgerView API.
// The remote message is preserved verbatim so callers can surface it
// to the user unchanged.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Code)
}

// NewError creates a protocol error for the given status and code.
func NewError(status int, code, message string) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// IsUnauthorized reports whether err is a 401 from the remote API.
// Only this class of failure may trigger a token refresh.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsServerFault reports whether err is a 5xx from the remote API.
// Server faults are never refreshed or retried by the core.
func IsServerFault(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status >= http.StatusInternalServerError
}

// IsTransient reports whether err is a transport-level failure: the call
// never reached the remote API. Not an authorization failure; callers own
// their retry and backoff policy for this class.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	return !errors.As(err, &apiErr)
}

// RemoteMessage extracts the user-facing message from an API error,
// falling back to the plain error text.
func RemoteMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
