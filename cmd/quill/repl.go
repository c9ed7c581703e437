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
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kadirpekel/quill/pkg/agent"
	"github.com/kadirpekel/quill/pkg/hooks"
	"github.com/kadirpekel/quill/pkg/llms"
	"github.com/kadirpekel/quill/pkg/tools"
)

// runREPL is the interactive loop: read a line, handle slash commands and
// @persona tokens, otherwise run one agent task while streaming output.
func runREPL(ctx context.Context, a *app) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("quill — session %s (type /quit to exit, /tools for capabilities)\n", a.sess.ID())

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			// EOF behaves like /quit.
			fmt.Println()
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := handleSlash(ctx, a, input)
			if err != nil {
				fmt.Println("error:", err)
			}
			if quit {
				return nil
			}
			continue
		}

		input = applyPersonaTokens(a, input)
		if input == "" {
			continue
		}

		if err := runTask(ctx, a, reader, input); err != nil {
			fmt.Println("error:", err)
		}
	}
}

// applyPersonaTokens activates @name personas found in the input and
// strips the tokens. Returns the cleaned task text.
func applyPersonaTokens(a *app, input string) string {
	fields := strings.Fields(input)
	var kept []string
	for _, f := range fields {
		if name, ok := strings.CutPrefix(f, "@"); ok {
			found := false
			for _, p := range a.personas {
				if p.Name == name {
					a.runtime.SetPersona(p)
					fmt.Printf("[persona: %s]\n", p.Name)
					found = true
					break
				}
			}
			if found {
				continue
			}
			fmt.Printf("[unknown persona: %s]\n", name)
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// runTask streams one agent task to stdout, answering ask_user requests
// inline from the same stdin reader.
func runTask(ctx context.Context, a *app, reader *bufio.Reader, task string) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, result := a.runtime.RunStreaming(runCtx, task)

	for {
		select {
		case req, ok := <-a.askCh:
			if ok {
				answerUserRequest(reader, req)
			}

		case chunk, ok := <-chunks:
			if !ok {
				res := <-result
				fmt.Println()
				return res.Err
			}
			switch chunk.Type {
			case llms.ChunkDelta:
				fmt.Print(chunk.Text)
			case llms.ChunkStatus:
				fmt.Printf("\n[%s]\n", chunk.Text)
			}
		}
	}
}

// answerUserRequest renders an ask_user question and collects the answer.
func answerUserRequest(reader *bufio.Reader, req tools.UserInputRequest) {
	defer close(req.Respond)

	fmt.Printf("\n%s\n", req.Question)
	for i, opt := range req.Options {
		fmt.Printf("  %d) %s\n", i+1, opt)
	}
	fmt.Printf("  %d) custom answer\n", len(req.Options)+1)
	if req.Mode == tools.ChooseMany {
		fmt.Print("pick any (comma-separated numbers or text): ")
	} else {
		fmt.Print("pick one (number or text): ")
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	answer := strings.TrimSpace(line)

	if req.Mode == tools.ChooseOne {
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(req.Options) {
			answer = req.Options[n-1]
		}
	} else {
		var picked []string
		for _, part := range strings.Split(answer, ",") {
			part = strings.TrimSpace(part)
			if n, err := strconv.Atoi(part); err == nil && n >= 1 && n <= len(req.Options) {
				picked = append(picked, req.Options[n-1])
			} else if part != "" {
				picked = append(picked, part)
			}
		}
		if len(picked) > 0 {
			answer = strings.Join(picked, ", ")
		}
	}

	req.Respond <- answer
}

// handleSlash executes a slash command. Returns quit=true for /quit.
func handleSlash(ctx context.Context, a *app, input string) (bool, error) {
	fields := strings.Fields(input)
	cmd := fields[0]

	switch cmd {
	case "/quit", "/exit":
		return true, nil

	case "/tools":
		for _, def := range a.registry.Definitions() {
			fmt.Printf("  %-12s %s\n", def.Name, firstLine(def.Description))
		}

	case "/skills":
		skills := a.skillReg.List()
		if len(skills) == 0 {
			fmt.Println("  no skills loaded")
		}
		for _, s := range skills {
			fmt.Printf("  %-20s %s\n", s.Name, s.Description)
		}

	case "/mcp":
		if len(a.cfg.MCPServers) == 0 {
			fmt.Println("  no MCP servers configured")
		}
		for _, server := range a.cfg.MCPServers {
			state := "disabled"
			if server.Enabled {
				state = "enabled"
			}
			fmt.Printf("  %-20s %-6s %-8s %s\n", server.Name, server.Transport, state, server.Endpoint)
		}

	case "/hooks":
		cfgFile := hooks.LoadConfigFile(hooks.DefaultConfigPath())
		if len(cfgFile.Hooks) == 0 {
			fmt.Println("  no hooks configured")
		}
		for _, h := range cfgFile.Hooks {
			fmt.Printf("  %-16s %-20s %-6s matcher=%q\n", h.Name, h.Event, h.Action, h.Matcher)
		}

	case "/agents":
		fmt.Println("  built-in profiles:")
		for _, name := range agent.ProfileNames() {
			fmt.Printf("    %s\n", name)
		}
		if len(a.personas) > 0 {
			fmt.Println("  personas (activate with @name):")
			for _, p := range a.personas {
				fmt.Printf("    @%-16s %s\n", p.Name, p.Description)
			}
		}

	case "/models":
		fmt.Printf("  current: %s (%s)\n", a.cfg.Model, a.cfg.Provider)
		for _, m := range a.cfg.CustomModels {
			fmt.Printf("  %-20s %s @ %s\n", m.Name, m.Model, m.BaseURL)
		}

	case "/usage":
		usage := a.runtime.TotalUsage()
		fmt.Printf("  runtime: %d input / %d output tokens\n", usage.InputTokens, usage.OutputTokens)
		if total, err := a.sess.TotalUsage(ctx); err == nil {
			fmt.Printf("  session: %d input / %d output tokens\n", total.InputTokens, total.OutputTokens)
		}

	case "/clear":
		if err := a.resetSession(""); err != nil {
			return false, err
		}
		fmt.Printf("  new session %s\n", a.sess.ID())

	case "/resume":
		if len(fields) < 2 {
			sessions, err := a.store.ListSessions(ctx)
			if err != nil {
				return false, err
			}
			for _, info := range sessions {
				fmt.Printf("  %s  %s\n", info.ID, info.CreatedAt.Format("2006-01-02 15:04"))
			}
			return false, nil
		}
		if err := a.resetSession(fields[1]); err != nil {
			return false, err
		}
		fmt.Printf("  resumed session %s\n", a.sess.ID())

	default:
		fmt.Println("  unknown command; available: /tools /skills /mcp /hooks /agents /models /usage /clear /resume /quit")
	}
	return false, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	if len(s) > 100 {
		return s[:100] + "..."
	}
	return s
}
