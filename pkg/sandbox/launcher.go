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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Launcher runs shell commands under the sandbox policy: the proxy
// environment is always injected, and on platforms with a policy profile
// the command runs inside it.
type Launcher struct {
	config    *Config
	proxyPort int
}

// NewLauncher builds a launcher for the given policy and proxy port.
func NewLauncher(config *Config, proxyPort int) *Launcher {
	return &Launcher{config: config, proxyPort: proxyPort}
}

// Run executes a shell command and returns stdout, stderr, and the run
// error. The caller owns timeout handling via ctx.
func (l *Launcher) Run(ctx context.Context, command string) ([]byte, []byte, error) {
	proxyAddr := fmt.Sprintf("http://127.0.0.1:%d", l.proxyPort)

	var cmd *exec.Cmd
	if profileSupported {
		profile := buildProfile(l.config, l.proxyPort)
		tmp, err := os.CreateTemp("", "quill-sandbox-*.sb")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to write sandbox profile: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.WriteString(profile); err != nil {
			tmp.Close()
			return nil, nil, fmt.Errorf("failed to write sandbox profile: %w", err)
		}
		tmp.Close()
		cmd = exec.CommandContext(ctx, "sandbox-exec", "-f", tmp.Name(), "bash", "-c", command)
	} else {
		cmd = exec.CommandContext(ctx, "bash", "-c", command)
	}

	cmd.Env = append(os.Environ(),
		"http_proxy="+proxyAddr,
		"https_proxy="+proxyAddr,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
