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
	"bufio"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// Proxy is a local HTTP CONNECT proxy bound to an ephemeral loopback port.
// Sandboxed subprocesses are pointed at it via http_proxy/https_proxy; each
// CONNECT target is checked against the sandbox domain policy before the
// tunnel is established.
type Proxy struct {
	listener net.Listener
	config   *Config

	closeOnce sync.Once
}

// StartProxy binds 127.0.0.1:0 and starts the accept loop.
func StartProxy(config *Config) (*Proxy, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	p := &Proxy{listener: listener, config: config}
	slog.Info("sandbox proxy listening", "addr", listener.Addr().String())

	go p.serve()
	return p, nil
}

// Port returns the bound port.
func (p *Proxy) Port() int {
	return p.listener.Addr().(*net.TCPAddr).Port
}

// Close stops the accept loop. Established tunnels drain on their own.
func (p *Proxy) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.listener.Close()
	})
	return err
}

func (p *Proxy) serve() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if !strings.Contains(err.Error(), "use of closed network connection") {
				slog.Warn("sandbox proxy accept error", "error", err)
			}
			return
		}
		go p.handleConnection(conn)
	}
}

func (p *Proxy) handleConnection(client net.Conn) {
	_ = client.SetReadDeadline(time.Now().Add(10 * time.Second))
	reader := bufio.NewReader(client)

	requestLine, err := reader.ReadString('\n')
	if err != nil {
		client.Close()
		return
	}
	_ = client.SetReadDeadline(time.Time{})

	parts := strings.Fields(strings.TrimSpace(requestLine))
	if len(parts) < 2 || parts[0] != "CONNECT" {
		client.Close()
		return
	}
	target := parts[1]

	// Drain remaining request headers up to the blank line.
	for {
		line, err := reader.ReadString('\n')
		if err != nil || strings.TrimSpace(line) == "" {
			break
		}
	}

	if err := p.config.CheckDomain(target); err != nil {
		slog.Warn("sandbox proxy blocking target", "target", target, "reason", err)
		_, _ = client.Write([]byte("HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n"))
		client.Close()
		return
	}

	upstream, err := net.DialTimeout("tcp", target, 15*time.Second)
	if err != nil {
		slog.Warn("sandbox proxy upstream dial failed", "target", target, "error", err)
		_, _ = client.Write([]byte("HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n"))
		client.Close()
		return
	}

	if _, err := client.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		client.Close()
		upstream.Close()
		return
	}

	slog.Debug("sandbox proxy tunneling", "target", target)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		// Bytes the client buffered past the request headers belong to the
		// tunnel.
		_, _ = io.Copy(upstream, reader)
		upstream.Close()
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(client, upstream)
		client.Close()
	}()
	wg.Wait()
}
