package registry

import (
	"fmt"
	"slices"

	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/logger"
)

// RegisterAlias makes alias resolve to name. Registering an alias equal to
// its name removes the alias.
func (r *Registry) RegisterAlias(name, alias string) error {
	if name == "" || alias == "" {
		return errors.InvalidDescriptor(name, "alias and name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if alias == name {
		delete(r.aliases, alias)
		return nil
	}
	if existing, ok := r.aliases[alias]; ok {
		if existing == name {
			return nil
		}
		if !r.allowOverriding {
			return errors.InvalidDescriptor(alias, fmt.Sprintf("alias is already registered for '%s'", existing))
		}
	}
	if _, ok := r.descriptors[alias]; ok && !r.allowOverriding {
		return errors.DescriptorOverride(alias)
	}
	if r.canonicalLocked(name) == alias {
		return errors.InvalidDescriptor(alias, fmt.Sprintf("alias '%s' for '%s' would create a cycle", alias, name))
	}
	r.aliases[alias] = name
	r.log.Debug("registered alias", logger.Fields(logger.FieldBean, name, "alias", alias))
	return nil
}

// RemoveAlias deletes an alias.
func (r *Registry) RemoveAlias(alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.aliases[alias]; !ok {
		return errors.MissingDescriptor(alias)
	}
	delete(r.aliases, alias)
	return nil
}

// IsAlias reports whether name is a registered alias.
func (r *Registry) IsAlias(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.aliases[name]
	return ok
}

// Aliases returns every alias resolving to name, directly or through other
// aliases, sorted.
func (r *Registry) Aliases(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for a := range r.aliases {
		if a != name && r.canonicalLocked(a) == name {
			out = append(out, a)
		}
	}
	slices.Sort(out)
	return out
}

// Canonical follows aliases until it reaches a name that is not an alias.
func (r *Registry) Canonical(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.canonicalLocked(name)
}

func (r *Registry) canonicalLocked(name string) string {
	for range len(r.aliases) + 1 {
		next, ok := r.aliases[name]
		if !ok {
			return name
		}
		name = next
	}
	return name
}
