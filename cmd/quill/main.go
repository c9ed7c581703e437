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

// Command quill is an interactive terminal coding agent.
//
// Usage:
//
//	quill                       start an interactive chat
//	quill --resume <session-id> resume an existing session
//	quill run "fix the tests"   one-shot task, print the result
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/quill/pkg/config"
	"github.com/kadirpekel/quill/pkg/logger"
	"github.com/kadirpekel/quill/pkg/observability"
)

// CLI defines the command-line interface.
type CLI struct {
	Chat    ChatCmd    `cmd:"" default:"1" help:"Start an interactive chat session."`
	Run     RunCmd     `cmd:"" help:"Run a single task and print the result."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"warn"`
	LogFormat string `help:"Log format (text, json)." default:"text"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	Trace     bool   `help:"Write OpenTelemetry spans to ~/.quill/trace.jsonl."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(*CLI) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("quill version %s\n", version)
	return nil
}

// ChatCmd starts the interactive REPL.
type ChatCmd struct {
	Resume string `help:"Resume an existing session by id." placeholder:"SESSION-ID"`
	Model  string `help:"Use a named custom model alias from config."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, c.Resume, c.Model)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runREPL(ctx, a)
}

// RunCmd executes a single task non-interactively.
type RunCmd struct {
	Task   string `arg:"" help:"Task for the agent to complete."`
	Resume string `help:"Resume an existing session by id." placeholder:"SESSION-ID"`
	Model  string `help:"Use a named custom model alias from config."`
}

func (c *RunCmd) Run(cli *CLI) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg, c.Resume, c.Model)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out, err := a.runtime.Run(ctx, c.Task)
	if err != nil {
		return err
	}
	fmt.Println(out.Result)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("quill"),
		kong.Description("quill — an interactive terminal coding agent"),
		kong.UsageOnError(),
	)

	closeLog, err := logger.Setup(logger.Options{
		Level:  cli.LogLevel,
		Format: cli.LogFormat,
		File:   cli.LogFile,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer closeLog()

	if cli.Trace {
		tracePath := config.ResolvePath("trace.jsonl")
		if f, err := os.OpenFile(tracePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			shutdown, err := observability.Init("quill", f)
			if err == nil {
				defer shutdown(context.Background())
			}
			defer f.Close()
		}
	}

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
