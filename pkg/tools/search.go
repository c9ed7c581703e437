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
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	maxSearchResults  = 200
	maxSearchFileSize = 1024 * 1024
)

// GlobTool lists files matching a glob pattern.
type GlobTool struct{}

type globArgs struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Glob pattern such as **/*.go or src/*.ts"`
	Path    string `json:"path,omitempty" jsonschema:"description=Directory to search (default: current directory)"`
}

func (GlobTool) Name() string { return "glob" }

func (GlobTool) Description() string {
	return "Find files whose paths match a glob pattern. Supports ** for recursive matching."
}

func (GlobTool) Parameters() map[string]any {
	return GenerateSchema[globArgs]()
}

func (GlobTool) Call(_ context.Context, raw json.RawMessage) (ToolResult, error) {
	var args globArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Errf("invalid arguments: %v", err), nil
	}
	root := args.Path
	if root == "" {
		root = "."
	}

	re, err := globToRegexp(args.Pattern)
	if err != nil {
		return Errf("invalid glob pattern %q: %v", args.Pattern, err), nil
	}

	var matches []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		if re.MatchString(filepath.ToSlash(rel)) {
			matches = append(matches, path)
			if len(matches) >= maxSearchResults {
				return filepath.SkipAll
			}
		}
		return nil
	})
	if walkErr != nil {
		return Errf("failed to walk %s: %v", root, walkErr), nil
	}

	if len(matches) == 0 {
		return Ok("no files matched"), nil
	}
	return Ok(strings.Join(matches, "\n")), nil
}

// globToRegexp compiles a glob pattern with ** support into a regexp.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(".*")
				i++
				// Swallow a following slash so **/ matches the root too.
				if i+1 < len(pattern) && pattern[i+1] == '/' {
					sb.WriteString("/?")
					i++
				}
			} else {
				sb.WriteString("[^/]*")
			}
		case '?':
			sb.WriteString("[^/]")
		case '.', '+', '(', ')', '|', '^', '$', '[', ']', '{', '}', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// GrepTool searches file contents for a regular expression.
type GrepTool struct{}

type grepArgs struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Regular expression to search for"`
	Path    string `json:"path,omitempty" jsonschema:"description=File or directory to search (default: current directory)"`
}

func (GrepTool) Name() string { return "grep" }

func (GrepTool) Description() string {
	return "Search file contents for a regular expression. Returns matching lines as path:line:text."
}

func (GrepTool) Parameters() map[string]any {
	return GenerateSchema[grepArgs]()
}

func (GrepTool) Call(_ context.Context, raw json.RawMessage) (ToolResult, error) {
	var args grepArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Errf("invalid arguments: %v", err), nil
	}
	root := args.Path
	if root == "" {
		root = "."
	}

	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return Errf("invalid pattern %q: %v", args.Pattern, err), nil
	}

	var out []string
	grepFile := func(path string) {
		info, err := os.Stat(path)
		if err != nil || info.Size() > maxSearchFileSize {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil || !utf8Valid(data) {
			return
		}
		for n, line := range strings.Split(string(data), "\n") {
			if len(out) >= maxSearchResults {
				return
			}
			if re.MatchString(line) {
				out = append(out, fmt.Sprintf("%s:%d:%s", path, n+1, line))
			}
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return Errf("failed to access %s: %v", root, err), nil
	}
	if info.IsDir() {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if d.Name() == ".git" || d.Name() == "node_modules" {
					return filepath.SkipDir
				}
				return nil
			}
			if len(out) >= maxSearchResults {
				return filepath.SkipAll
			}
			grepFile(path)
			return nil
		})
	} else {
		grepFile(root)
	}

	if len(out) == 0 {
		return Ok("no matches"), nil
	}
	return Ok(strings.Join(out, "\n")), nil
}

func utf8Valid(data []byte) bool {
	// A NUL byte is a good-enough binary heuristic for grep purposes.
	for _, b := range data {
		if b == 0 {
			return false
		}
	}
	return true
}
