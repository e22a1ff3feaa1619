// pkg/tools/tools.go
package tools

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Descriptor is a lightweight description of one tool a server exposes.
type Descriptor struct {
	Name    string   `json:"name" yaml:"name"`
	Summary string   `json:"summary" yaml:"summary"`
	Scopes  []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Params  []Param  `json:"params,omitempty" yaml:"params,omitempty"`
}

type Param struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Catalog is the YAML manifest a provider package embeds next to its
// handlers.
type Catalog struct {
	Server string       `yaml:"server"`
	Tools  []Descriptor `yaml:"tools"`
}

func ParseCatalog(raw []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Func handles one tool invocation. The tenant identity arrives bound to
// ctx; handlers never receive it as an argument.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Gate decides whether a tenant may run a tool. A nil Gate allows all.
type Gate interface {
	Allow(ctx context.Context, tenantID, tool string, args map[string]any) (bool, []string, error)
}

// Registry maps tool names to handlers for one tool server.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
	descs []Descriptor
	gate  Gate
	log   *zap.SugaredLogger
}

func NewRegistry(gate Gate, log *zap.SugaredLogger) *Registry {
	return &Registry{funcs: map[string]Func{}, gate: gate, log: log}
}

func (r *Registry) Register(desc Descriptor, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.funcs[desc.Name]; dup {
		r.log.Warnw("tool registered twice, keeping last", "tool", desc.Name)
	} else {
		r.descs = append(r.descs, desc)
	}
	r.funcs[desc.Name] = fn
}

// Descriptors returns the catalog in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.descs))
	copy(out, r.descs)
	return out
}

// Invoke runs one tool under the caller's (identity-bound) context, after
// the policy gate if one is configured.
func (r *Registry) Invoke(ctx context.Context, tenantID, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	if r.gate != nil {
		allowed, reasons, err := r.gate.Allow(ctx, tenantID, name, args)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("tool %q blocked by policy: %v", name, reasons)
		}
	}
	return fn(ctx, args)
}
