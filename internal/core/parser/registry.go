package parser

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Registry resolves the rule parser for an insurer, falling back to the
// generic pack for insurers without a dedicated one.
type Registry struct {
	parsers  map[string]*RuleParser
	fallback *RuleParser
}

func NewRegistry(fallback *RuleParser) *Registry {
	return &Registry{parsers: make(map[string]*RuleParser), fallback: fallback}
}

func (r *Registry) Register(p *RuleParser) {
	r.parsers[p.Insurer()] = p
}

func (r *Registry) Resolve(insurerCode string) *RuleParser {
	if p, ok := r.parsers[insurerCode]; ok {
		return p
	}
	return r.fallback
}

func (r *Registry) Insurers() []string {
	out := make([]string, 0, len(r.parsers))
	for code := range r.parsers {
		out = append(out, code)
	}
	return out
}

// BuiltinRegistry compiles the built-in packs plus the generic fallback.
func BuiltinRegistry() (*Registry, error) {
	fallback, err := Compile(DefaultRulePack())
	if err != nil {
		return nil, err
	}
	reg := NewRegistry(fallback)
	for _, pack := range BuiltinRulePacks() {
		p, err := Compile(pack)
		if err != nil {
			return nil, err
		}
		reg.Register(p)
	}
	return reg, nil
}

type overlayFile struct {
	Packs []RulePack `yaml:"packs"`
}

// ApplyOverlay compiles rule packs from a YAML document and registers them,
// replacing any built-in pack for the same insurer. The overlay is rejected
// wholesale if any pack fails to compile.
func (r *Registry) ApplyOverlay(data []byte) error {
	var file overlayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse rule pack overlay: %w", err)
	}
	compiled := make([]*RuleParser, 0, len(file.Packs))
	for _, pack := range file.Packs {
		p, err := Compile(pack)
		if err != nil {
			return err
		}
		compiled = append(compiled, p)
	}
	for _, p := range compiled {
		r.Register(p)
	}
	return nil
}
