package service

import (
	"fmt"
	"sort"
	"sync"

	"github.com/imagicbell/ublockly-sub001/internal/codegen"
	"github.com/imagicbell/ublockly-sub001/internal/codegen/csharp"
	"github.com/imagicbell/ublockly-sub001/internal/codegen/lua"
)

// ─────────────────────────────────────────────────────────────
// Target Registry: pluggable code generators
// ─────────────────────────────────────────────────────────────

// Target is a code generator plus the file extension of its output.
type Target struct {
	Name     string
	Ext      string
	Language *codegen.Language
}

// TargetRegistry maps target names to generators.
type TargetRegistry struct {
	mu      sync.RWMutex
	targets map[string]Target
}

func NewTargetRegistry() *TargetRegistry {
	return &TargetRegistry{targets: make(map[string]Target)}
}

// DefaultTargets returns a registry holding the built-in C# and Lua targets.
func DefaultTargets() *TargetRegistry {
	r := NewTargetRegistry()
	r.Register(Target{Name: "csharp", Ext: ".cs", Language: csharp.Language()})
	r.Register(Target{Name: "lua", Ext: ".lua", Language: lua.Language()})
	return r
}

// Register adds a target. Panics on duplicate registration.
func (r *TargetRegistry) Register(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.targets[t.Name]; exists {
		panic(fmt.Sprintf("target registry: duplicate registration for target %q", t.Name))
	}
	r.targets[t.Name] = t
}

func (r *TargetRegistry) Get(name string) (Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[name]
	if !ok {
		return Target{}, fmt.Errorf("unknown target %q", name)
	}
	return t, nil
}

// Names returns the registered target names, sorted.
func (r *TargetRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.targets))
	for n := range r.targets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
