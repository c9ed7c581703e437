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

// Package sandbox restricts what external-facing tools may touch: file
// reads and writes are checked against path prefixes, and outbound network
// access is funneled through a local CONNECT proxy that enforces a domain
// policy. On macOS, shell commands additionally run under a Seatbelt
// profile.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config is the sandbox policy. The zero value is a disabled sandbox that
// permits everything.
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// AllowedWritePaths lists paths writable in addition to the working
	// directory (which is always implicitly allowed).
	AllowedWritePaths []string `yaml:"allowed_write_paths" json:"allowed_write_paths"`

	// DeniedReadPaths lists path prefixes blocked for reads
	// (e.g. ~/.ssh, secrets directories).
	DeniedReadPaths []string `yaml:"denied_read_paths" json:"denied_read_paths"`

	// AllowedDomains is the network allowlist; empty means no allowlist
	// is enforced and only the blocklist applies.
	AllowedDomains []string `yaml:"allowed_domains" json:"allowed_domains"`

	// BlockedDomains are always denied regardless of the allowlist.
	BlockedDomains []string `yaml:"blocked_domains" json:"blocked_domains"`
}

// canonicalize resolves a path for prefix comparison. Paths that do not
// exist yet fall back to the canonicalized parent joined with the base
// name, so checks on to-be-created files still work.
func canonicalize(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		if abs, err := filepath.Abs(resolved); err == nil {
			return abs
		}
		return resolved
	}
	parent := filepath.Dir(path)
	if resolved, err := filepath.EvalSymlinks(parent); err == nil {
		return filepath.Join(resolved, filepath.Base(path))
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func underPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// CheckReadPath returns an error naming the sandbox when the target lies
// under any denied read prefix.
func (c *Config) CheckReadPath(path string) error {
	if !c.Enabled {
		return nil
	}
	canonical := canonicalize(path)
	for _, denied := range c.DeniedReadPaths {
		if underPrefix(canonical, canonicalize(denied)) {
			return fmt.Errorf("sandbox: read denied for path %s", path)
		}
	}
	return nil
}

// CheckWritePath allows a write only when the target lies under the
// process working directory or an explicit allow prefix.
func (c *Config) CheckWritePath(path string) error {
	if !c.Enabled {
		return nil
	}
	canonical := canonicalize(path)

	if cwd, err := os.Getwd(); err == nil {
		if underPrefix(canonical, canonicalize(cwd)) {
			return nil
		}
	}
	for _, allowed := range c.AllowedWritePaths {
		if underPrefix(canonical, canonicalize(allowed)) {
			return nil
		}
	}
	return fmt.Errorf("sandbox: write denied for path %s", path)
}

// domainMatches reports equality or a suffix match on ".entry".
func domainMatches(host, entry string) bool {
	return host == entry || strings.HasSuffix(host, "."+entry)
}

// CheckDomain applies the network policy to a "host" or "host:port"
// target. The blocklist always wins; a non-empty allowlist additionally
// requires a match.
func (c *Config) CheckDomain(target string) error {
	if !c.Enabled {
		return nil
	}
	host := target
	if idx := strings.LastIndexByte(target, ':'); idx >= 0 && !strings.Contains(target[idx:], "]") {
		host = target[:idx]
	}

	for _, blocked := range c.BlockedDomains {
		if domainMatches(host, blocked) {
			return fmt.Errorf("sandbox: domain %s is blocked", host)
		}
	}

	if len(c.AllowedDomains) > 0 {
		for _, allowed := range c.AllowedDomains {
			if domainMatches(host, allowed) {
				return nil
			}
		}
		return fmt.Errorf("sandbox: domain %s not in allowlist", host)
	}
	return nil
}
