package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

// Registry maps rule names to their predicates.
type Registry interface {
	// Register adds a predicate under its own name
	Register(p Predicate) error
	// Get returns the predicate registered under name
	Get(name string) (Predicate, error)
	// List returns the registered rule names in lexical order
	List() []string
}

type registry struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
}

func NewRegistry() Registry {
	return &registry{
		predicates: make(map[string]Predicate),
	}
}

func (r *registry) Register(p Predicate) error {
	if p == nil {
		return fmt.Errorf("predicate cannot be nil")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.predicates[name]; exists {
		return fmt.Errorf("rule %q is already registered", name)
	}

	r.predicates[name] = p
	return nil
}

func (r *registry) Get(name string) (Predicate, error) {
	r.mu.RLock()
	p, exists := r.predicates[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", domain.ErrRuleNotFound, name)
	}
	return p, nil
}

func (r *registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.predicates))
	for name := range r.predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
