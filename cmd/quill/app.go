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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/quill/pkg/agent"
	"github.com/kadirpekel/quill/pkg/config"
	"github.com/kadirpekel/quill/pkg/hooks"
	"github.com/kadirpekel/quill/pkg/llms"
	"github.com/kadirpekel/quill/pkg/permissions"
	"github.com/kadirpekel/quill/pkg/sandbox"
	"github.com/kadirpekel/quill/pkg/session"
	"github.com/kadirpekel/quill/pkg/skills"
	"github.com/kadirpekel/quill/pkg/tools"
)

// app wires the agent runtime and everything it consumes.
type app struct {
	cfg *config.Config

	provider   llms.Provider
	registry   *tools.Registry
	perms      *permissions.Guard
	hookReg    *hooks.Registry
	skillReg   *skills.Registry
	store        *session.Store
	sess         *session.Session
	runtime      *agent.Runtime
	proxy        *sandbox.Proxy
	askCh        chan tools.UserInputRequest
	personas     []*agent.Persona
	mcpSources   []*tools.MCPToolSource
	skillWatcher *skills.Watcher
}

// buildApp assembles the full stack. resumeID selects an existing session;
// empty creates a fresh one. modelAlias optionally selects a custom model
// entry from config.
func buildApp(cfg *config.Config, resumeID, modelAlias string) (*app, error) {
	a := &app{cfg: cfg, askCh: make(chan tools.UserInputRequest, 1)}

	// Provider: config < default credentials record < explicit alias.
	buildOpts := llms.BuildOptions{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
	}
	if creds, err := config.LoadCredentials(); err == nil && creds != nil && creds.IsDefault {
		buildOpts.Provider = creds.Provider
		buildOpts.Model = creds.Model
		buildOpts.BaseURL = creds.BaseURL
		if creds.APIKey != "" {
			buildOpts.APIKey = creds.APIKey
		}
	}
	if modelAlias != "" {
		entry, ok := cfg.ResolveModel(modelAlias)
		if !ok {
			return nil, fmt.Errorf("unknown model alias %q", modelAlias)
		}
		buildOpts.Provider = entry.Provider
		buildOpts.Model = entry.Model
		buildOpts.BaseURL = entry.BaseURL
		buildOpts.APIKey = entry.APIKey
	}
	provider, err := llms.Build(buildOpts)
	if err != nil {
		return nil, err
	}
	a.provider = provider

	// Skills, with a directory watcher so edits land between turns.
	a.skillReg = skills.Load(cfg.Skills)
	if watcher, err := skills.Watch(a.skillReg); err == nil {
		a.skillWatcher = watcher
	} else {
		slog.Warn("skill watcher unavailable", "error", err)
	}

	// Base tool registry.
	a.registry = tools.NewRegistry()
	a.registry.Register(tools.ReadFileTool{})
	a.registry.Register(tools.WriteFileTool{})
	a.registry.Register(tools.GlobTool{})
	a.registry.Register(tools.GrepTool{})
	a.registry.Register(tools.CommandTool{})
	a.registry.Register(tools.NewWebFetchTool())
	a.registry.Register(tools.NewReadSkillTool(a.skillReg))
	a.registry.Register(tools.NewAskUserTool(a.askCh))

	// MCP servers.
	for _, server := range cfg.MCPServers {
		if !server.Enabled {
			continue
		}
		source := tools.NewMCPToolSource(tools.MCPSourceConfig{
			Name:      server.Name,
			Transport: server.Transport,
			Command:   server.Endpoint,
			Args:      server.Args,
			Endpoint:  server.Endpoint,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := source.Connect(ctx)
		cancel()
		if err != nil {
			slog.Warn("skipping MCP server", "name", server.Name, "error", err)
			continue
		}
		for _, t := range source.Tools() {
			a.registry.Register(t)
		}
		a.mcpSources = append(a.mcpSources, source)
	}

	// Sandbox: proxy plus wrapped registry.
	if cfg.Sandbox.Enabled {
		proxy, err := sandbox.StartProxy(&cfg.Sandbox)
		if err != nil {
			return nil, fmt.Errorf("failed to start sandbox proxy: %w", err)
		}
		a.proxy = proxy
		a.registry = sandbox.WrapRegistry(a.registry, &cfg.Sandbox, proxy.Port())
	}

	// Permissions.
	a.perms = permissions.NewGuard()

	// Sub-agent orchestration tools share the registry built so far.
	spawnCfg := agent.SpawnerConfig{
		Provider:         a.provider,
		Tools:            a.registry,
		Permissions:      a.perms,
		MaxTurns:         cfg.MaxTurns,
		MaxContextTokens: cfg.MaxContextTokens,
	}
	a.registry.Register(agent.NewDelegateTool(spawnCfg))
	a.registry.Register(agent.NewDispatchTool(spawnCfg))

	// Session.
	store, err := session.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.store = store

	ctx := context.Background()
	if resumeID != "" {
		a.sess, err = store.LoadSession(ctx, resumeID)
	} else {
		a.sess, err = store.NewSession(ctx)
	}
	if err != nil {
		store.Close()
		return nil, err
	}

	// Hooks: persisted config entries plus telemetry.
	a.hookReg = hooks.NewRegistry()
	hooks.RegisterConfigured(a.hookReg, hooks.LoadConfigFile(hooks.DefaultConfigPath()))
	if telemetry, err := hooks.NewTelemetryFileHook(
		hooks.DefaultTelemetryPath(a.sess.ID()), a.sess.ID()); err == nil {
		a.hookReg.Register(telemetry)
	}
	a.hookReg.Register(hooks.NewTracingHook(a.sess.ID()))

	a.personas = agent.DiscoverPersonas()

	a.runtime = agent.New(agent.Options{
		Provider:         a.provider,
		Tools:            a.registry,
		Permissions:      a.perms,
		Hooks:            a.hookReg,
		Skills:           a.skillReg,
		Session:          a.sess,
		BasePrompt:       basePrompt,
		MaxTurns:         cfg.MaxTurns,
		MaxContextTokens: cfg.MaxContextTokens,
	})

	return a, nil
}

// resetSession starts a fresh session and runtime, keeping the shared
// registries and guards.
func (a *app) resetSession(resumeID string) error {
	ctx := context.Background()
	var err error
	var sess *session.Session
	if resumeID != "" {
		sess, err = a.store.LoadSession(ctx, resumeID)
	} else {
		sess, err = a.store.NewSession(ctx)
	}
	if err != nil {
		return err
	}
	a.sess = sess
	a.runtime = agent.New(agent.Options{
		Provider:         a.provider,
		Tools:            a.registry,
		Permissions:      a.perms,
		Hooks:            a.hookReg,
		Skills:           a.skillReg,
		Session:          a.sess,
		BasePrompt:       basePrompt,
		MaxTurns:         a.cfg.MaxTurns,
		MaxContextTokens: a.cfg.MaxContextTokens,
	})
	return nil
}

// close releases held resources.
func (a *app) close() {
	if a.skillWatcher != nil {
		_ = a.skillWatcher.Close()
	}
	for _, source := range a.mcpSources {
		_ = source.Close()
	}
	if a.proxy != nil {
		_ = a.proxy.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
