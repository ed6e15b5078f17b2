// Package platform implements the registered-variant pattern for component
// construction: a string type tag maps to a factory producing a value that
// satisfies the component capability contract. Adding a hardware platform
// means registering new factories, never branching on type. Registries are
// explicit objects owned by whoever built them; there is no process-wide
// table.
package platform

import (
	"fmt"
	"sort"
	"sync"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/errors"
)

// Setup carries the optional construction arguments of one component, as
// decoded from a config file. Values are plain scalars; the typed getters
// apply defaults for absent keys and reject wrong types.
type Setup map[string]any

// Bool returns a bool setup argument or def when absent
func (s Setup) Bool(key string, def bool) (bool, error) {
	raw, ok := s[key]
	if !ok {
		return def, nil
	}
	v, ok := raw.(bool)
	if !ok {
		return false, setupTypeErr(key, "bool", raw)
	}
	return v, nil
}

// Int returns an integer setup argument or def when absent
func (s Setup) Int(key string, def int64) (int64, error) {
	raw, ok := s[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, setupTypeErr(key, "int", raw)
	}
}

// Float returns a float setup argument or def when absent. Integers are
// widened, matching how YAML decodes "50" vs "50.0".
func (s Setup) Float(key string, def float64) (float64, error) {
	raw, ok := s[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, setupTypeErr(key, "float", raw)
	}
}

// String returns a string setup argument or def when absent
func (s Setup) String(key string, def string) (string, error) {
	raw, ok := s[key]
	if !ok {
		return def, nil
	}
	v, ok := raw.(string)
	if !ok {
		return "", setupTypeErr(key, "string", raw)
	}
	return v, nil
}

func setupTypeErr(key, want string, got any) error {
	return errors.WrapInvalid(
		fmt.Errorf("setup argument %q wants %s, got %T: %w",
			key, want, got, errors.ErrTypeMismatch),
		"Setup", "get", "type check")
}

// Factory builds one component instance from its setup arguments
type Factory func(setup Setup) (component.Component, error)

// Registry maps component type tags to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty platform registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under a type tag. Duplicate tags are invalid.
func (r *Registry) Register(tag string, factory Factory) error {
	if tag == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "tag validation")
	}
	if factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "factory validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[tag]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("component type %q is already registered", tag),
			"Registry", "Register", "duplicate tag check")
	}
	r.factories[tag] = factory
	return nil
}

// Alias registers an existing tag under an additional name
// (e.g. "led" and "motor" for a trigger-style component).
func (r *Registry) Alias(alias, tag string) error {
	r.mu.RLock()
	factory, exists := r.factories[tag]
	r.mu.RUnlock()

	if !exists {
		return errors.WrapInvalid(
			fmt.Errorf("component type %q is not registered", tag),
			"Registry", "Alias", "tag lookup")
	}
	return r.Register(alias, factory)
}

// New builds a component of the given type tag
func (r *Registry) New(tag string, setup Setup) (component.Component, error) {
	r.mu.RLock()
	factory, exists := r.factories[tag]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown component type %q: %w", tag, errors.ErrInvalidConfig),
			"Registry", "New", "factory lookup")
	}

	comp, err := factory(setup)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "New", fmt.Sprintf("build %q", tag))
	}

	if err := component.ContractOf(comp).Validate(); err != nil {
		return nil, errors.Wrap(err, "Registry", "New", fmt.Sprintf("contract of %q", tag))
	}
	return comp, nil
}

// Tags returns all registered type tags, sorted
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
