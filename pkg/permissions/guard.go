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

// Package permissions provides a static allow/deny filter over tool names.
package permissions

// Guard filters tool calls by name. The deny list always applies; when an
// allow list is present only listed names pass. Guards are immutable after
// construction and safe to share across sub-agents.
type Guard struct {
	allow map[string]struct{} // nil = no allow list
	deny  map[string]struct{}
}

// NewGuard creates a guard that allows everything.
func NewGuard() *Guard {
	return &Guard{deny: map[string]struct{}{}}
}

// AllowOnly creates a guard that permits only the listed tool names.
func AllowOnly(names ...string) *Guard {
	allow := make(map[string]struct{}, len(names))
	for _, n := range names {
		allow[n] = struct{}{}
	}
	return &Guard{allow: allow, deny: map[string]struct{}{}}
}

// Deny returns a copy of the guard with the given names added to the deny
// list.
func (g *Guard) Deny(names ...string) *Guard {
	out := &Guard{deny: make(map[string]struct{}, len(g.deny)+len(names))}
	if g.allow != nil {
		out.allow = make(map[string]struct{}, len(g.allow))
		for n := range g.allow {
			out.allow[n] = struct{}{}
		}
	}
	for n := range g.deny {
		out.deny[n] = struct{}{}
	}
	for _, n := range names {
		out.deny[n] = struct{}{}
	}
	return out
}

// IsAllowed reports whether the named tool may be called.
func (g *Guard) IsAllowed(name string) bool {
	if _, denied := g.deny[name]; denied {
		return false
	}
	if g.allow != nil {
		_, ok := g.allow[name]
		return ok
	}
	return true
}
