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

//go:build darwin

package sandbox

import (
	"fmt"
	"os"
	"strings"
)

// buildProfile emits a Seatbelt policy for sandboxed shell commands.
// Reads are globally allowed (denied read paths are enforced at the
// application layer); writes are limited to cwd, the allow list, and the
// standard temp dirs; network egress is limited to the proxy port.
func buildProfile(config *Config, proxyPort int) string {
	var sb strings.Builder

	sb.WriteString("(version 1)\n")
	sb.WriteString("(deny default)\n\n")
	sb.WriteString("(allow process-exec process-fork)\n\n")
	sb.WriteString("(allow file-read*)\n\n")

	if cwd, err := os.Getwd(); err == nil {
		fmt.Fprintf(&sb, "(allow file-write* (subpath %q))\n", cwd)
	}
	for _, path := range config.AllowedWritePaths {
		fmt.Fprintf(&sb, "(allow file-write* (subpath %q))\n", path)
	}
	sb.WriteString("(allow file-write* (subpath \"/tmp\"))\n")
	sb.WriteString("(allow file-write* (subpath \"/var/folders\"))\n\n")

	fmt.Fprintf(&sb, "(allow network-outbound (remote ip \"localhost:%d\"))\n", proxyPort)
	fmt.Fprintf(&sb, "(allow network-outbound (remote ip \"127.0.0.1:%d\"))\n", proxyPort)
	sb.WriteString("(deny network-outbound)\n\n")

	sb.WriteString("(allow sysctl-read)\n")
	sb.WriteString("(allow signal (target same-sandbox))\n")

	return sb.String()
}

const profileSupported = true
