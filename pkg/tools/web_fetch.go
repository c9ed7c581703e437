// Copyright 2025 Kadir Pekel
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

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxFetchBytes = 512 * 1024

// WebFetchTool performs an HTTP GET and returns the body as text. Outbound
// traffic honors the standard proxy environment, so sandboxed runs are
// funneled through the CONNECT proxy.
type WebFetchTool struct {
	client *http.Client
}

// NewWebFetchTool builds the tool with a proxy-aware HTTP client.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
	}
}

type webFetchArgs struct {
	URL string `json:"url" jsonschema:"required,description=The http(s) URL to fetch"`
}

func (*WebFetchTool) Name() string { return "web_fetch" }

func (*WebFetchTool) Description() string {
	return "Fetch a URL over HTTP GET and return the response body as text. " +
		"Use for documentation pages, raw files, and APIs that return text."
}

func (*WebFetchTool) Parameters() map[string]any {
	return GenerateSchema[webFetchArgs]()
}

func (t *WebFetchTool) Call(ctx context.Context, raw json.RawMessage) (ToolResult, error) {
	var args webFetchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Errf("invalid arguments: %v", err), nil
	}
	if !strings.HasPrefix(args.URL, "http://") && !strings.HasPrefix(args.URL, "https://") {
		return Errf("unsupported URL scheme in %q", args.URL), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return Errf("invalid URL %q: %v", args.URL, err), nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Errf("failed to fetch %s: %v", args.URL, err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return Errf("failed to read response from %s: %v", args.URL, err), nil
	}

	if resp.StatusCode >= 400 {
		return Errf("GET %s returned %d: %s", args.URL, resp.StatusCode, truncate(string(body), 500)), nil
	}
	return Ok(fmt.Sprintf("GET %s (%d, %d bytes)\n\n%s", args.URL, resp.StatusCode, len(body), string(body))), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
