// Package filter implements the daemon's tool-name allow/deny decision
// (spec §4.F): disabled_tools takes strict precedence over allowed_tools,
// and an empty list is equivalent to the list being absent.
//
// Grounded on the original cli/filter.rs (tool_matches_pattern /
// tools_match_any, glob-crate semantics) and on the teacher's
// ResponseFilter interface shape; reimplemented with gobwas/glob, which
// compiles each pattern once instead of re-parsing it per lookup.
package filter

import (
	"fmt"
	"sync"

	"github.com/gobwas/glob"
)

// ToolFilter decides which tools a server exposes to clients.
type ToolFilter struct {
	allowed  []glob.Glob
	disabled []glob.Glob
}

// New compiles allowedTools and disabledTools into a ToolFilter. A nil or
// empty slice is "not configured" for that direction, per spec §4.F.
func New(allowedTools, disabledTools []string) (*ToolFilter, error) {
	allowed, err := compileAll(allowedTools)
	if err != nil {
		return nil, fmt.Errorf("allowed_tools: %w", err)
	}
	disabled, err := compileAll(disabledTools)
	if err != nil {
		return nil, fmt.Errorf("disabled_tools: %w", err)
	}
	return &ToolFilter{allowed: allowed, disabled: disabled}, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// Allowed reports whether toolName passes the filter, evaluated in the
// order spec §4.F prescribes: disabled_tools first (deny on match), then
// allowed_tools (deny on no match), else allow.
func (f *ToolFilter) Allowed(toolName string) bool {
	if f == nil {
		return true
	}
	if matchAny(f.disabled, toolName) {
		return false
	}
	if len(f.allowed) > 0 && !matchAny(f.allowed, toolName) {
		return false
	}
	return true
}

func matchAny(patterns []glob.Glob, name string) bool {
	for _, g := range patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// FilterNames returns the subset of names Allowed by f, preserving order.
func (f *ToolFilter) FilterNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if f.Allowed(n) {
			out = append(out, n)
		}
	}
	return out
}

// Cache compiles a ToolFilter per server once and reuses it, since the
// pool looks up the filter on every list_tools/execute_tool call but the
// underlying config never changes during a daemon's lifetime.
type Cache struct {
	mu      sync.RWMutex
	filters map[string]*ToolFilter
}

// NewCache returns an empty per-server ToolFilter cache.
func NewCache() *Cache {
	return &Cache{filters: make(map[string]*ToolFilter)}
}

// GetOrCompile returns the cached filter for serverName, compiling and
// storing it on first use.
func (c *Cache) GetOrCompile(serverName string, allowedTools, disabledTools []string) (*ToolFilter, error) {
	c.mu.RLock()
	if f, ok := c.filters[serverName]; ok {
		c.mu.RUnlock()
		return f, nil
	}
	c.mu.RUnlock()

	f, err := New(allowedTools, disabledTools)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.filters[serverName] = f
	c.mu.Unlock()
	return f, nil
}
