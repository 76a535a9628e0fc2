package generators

import (
	"fmt"
	"sort"
	"sync"
)

type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
}

func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]Generator)}
}

func (r *Registry) Register(g Generator) error {
	if g == nil {
		return fmt.Errorf("nil generator")
	}
	kind := g.Kind()
	if kind == "" {
		return fmt.Errorf("generator Kind() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.generators[kind]; exists {
		return fmt.Errorf("generator already registered for kind=%s", kind)
	}
	r.generators[kind] = g
	return nil
}

func (r *Registry) Get(kind string) (Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[kind]
	return g, ok
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.generators))
	for k := range r.generators {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AttributeGenerators builds every record generator that shares deps. The
// persona generator lives in its own package and is registered alongside.
func AttributeGenerators(deps *Deps) []Generator {
	return []Generator{
		NewBiographies(deps),
		NewCompetencies(deps),
		NewTechSpecs(deps),
		NewTasksGoals(deps),
		NewKnowledge(deps),
		NewWorkflows(deps),
		NewAvatarPrompts(deps),
		NewAvatarImages(deps),
		NewAvatarFiles(deps),
		NewAudit(deps),
	}
}

// RegisterAll registers gens, stopping at the first conflict.
func (r *Registry) RegisterAll(gens ...Generator) error {
	for _, g := range gens {
		if err := r.Register(g); err != nil {
			return err
		}
	}
	return nil
}
