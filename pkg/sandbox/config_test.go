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

package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledSandboxAllowsEverything(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, cfg.CheckReadPath("/etc/passwd"))
	assert.NoError(t, cfg.CheckWritePath("/etc/passwd"))
	assert.NoError(t, cfg.CheckDomain("evil.example.com"))
}

func TestReadDeniedForBlockedPath(t *testing.T) {
	tmp := t.TempDir()
	secrets := filepath.Join(tmp, "secrets")
	require.NoError(t, os.MkdirAll(secrets, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(secrets, "id_rsa"), []byte("x"), 0o600))

	cfg := &Config{Enabled: true, DeniedReadPaths: []string{secrets}}

	err := cfg.CheckReadPath(filepath.Join(secrets, "id_rsa"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sandbox")

	assert.NoError(t, cfg.CheckReadPath(filepath.Join(tmp, "other.txt")))
}

func TestWriteDeniedOutsideCwdAndAllowlist(t *testing.T) {
	cfg := &Config{Enabled: true, AllowedWritePaths: []string{t.TempDir()}}

	err := cfg.CheckWritePath("/no-such-root/malicious")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sandbox")
}

func TestWriteAllowedInsideCwd(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	cfg := &Config{Enabled: true}
	assert.NoError(t, cfg.CheckWritePath(filepath.Join(cwd, "output.txt")))
}

func TestWriteAllowedInExplicitAllowPath(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{Enabled: true, AllowedWritePaths: []string{tmp}}
	assert.NoError(t, cfg.CheckWritePath(filepath.Join(tmp, "out.txt")))
}

func TestDomainPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allow   []string
		block   []string
		target  string
		wantErr bool
	}{
		{"no lists allows all", nil, nil, "github.com:443", false},
		{"blocked exact", nil, []string{"evil.com"}, "evil.com:443", true},
		{"blocked subdomain", nil, []string{"evil.com"}, "sub.evil.com:443", true},
		{"block wins over allow", []string{"evil.com"}, []string{"evil.com"}, "evil.com:443", true},
		{"allowlist admits exact", []string{"api.openai.com"}, nil, "api.openai.com:443", false},
		{"allowlist admits subdomain", []string{"openai.com"}, nil, "api.openai.com:443", false},
		{"allowlist rejects others", []string{"api.openai.com"}, nil, "github.com:443", true},
		{"empty allowlist only blocklist", nil, []string{"evil.com"}, "github.com:443", false},
		{"suffix is not substring", []string{"openai.com"}, nil, "notopenai.com:443", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Enabled:        true,
				AllowedDomains: tt.allow,
				BlockedDomains: tt.block,
			}
			err := cfg.CheckDomain(tt.target)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDomainCheckStripsPort(t *testing.T) {
	cfg := &Config{Enabled: true, AllowedDomains: []string{"localhost"}}
	assert.NoError(t, cfg.CheckDomain("localhost:9999"))
	assert.Error(t, cfg.CheckDomain("example.com:443"))
}
