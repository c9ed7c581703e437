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

package llms

import (
	"fmt"
	"time"
)

// BuildOptions selects and configures a provider.
type BuildOptions struct {
	// Provider tag: "openai" (default, covers any OpenAI-compatible
	// endpoint) or "echo" for offline wiring checks.
	Provider string
	Model    string
	BaseURL  string
	APIKey   string

	MaxRetries int
	BaseDelay  time.Duration
}

// Build constructs a Provider from options and wraps it with retry/backoff.
// Vendor-specific wire adapters beyond the OpenAI-compatible protocol are
// supplied by embedding applications through the Provider interface.
func Build(opts BuildOptions) (Provider, error) {
	var inner Provider
	switch opts.Provider {
	case "", "openai", "custom":
		if opts.BaseURL == "" {
			opts.BaseURL = "https://api.openai.com/v1"
		}
		inner = NewOpenAIProvider(opts.BaseURL, opts.APIKey, opts.Model)
	case "echo":
		inner = EchoProvider{}
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: openai, custom, echo)", opts.Provider)
	}
	return NewRetryingProvider(inner, opts.MaxRetries, opts.BaseDelay), nil
}
