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

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ledgerview/ledgerview-core/authapi"
)

// GetJSON issues a GET and decodes the JSON response into out.
func (g *Gateway) GetJSON(ctx context.Context, path string, out any) error {
	return g.doJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON issues a POST with a JSON body and decodes the response.
func (g *Gateway) PostJSON(ctx context.Context, path string, body, out any) error {
	return g.doJSON(ctx, http.MethodPost, path, body, out)
}

// PutJSON issues a PUT with a JSON body and decodes the response.
func (g *Gateway) PutJSON(ctx context.Context, path string, body, out any) error {
	return g.doJSON(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE and discards any response body.
func (g *Gateway) Delete(ctx context.Context, path string) error {
	return g.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (g *Gateway) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	var req *http.Request
	var err error
	if reader != nil {
		// http.NewRequestWithContext sets GetBody for *bytes.Reader,
		// which the single retry depends on.
		req, err = http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, g.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return authapi.ErrorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
