package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownKind is returned when no importer is registered for a kind.
var ErrUnknownKind = errors.New("unknown import kind")

var (
	registry   = make(map[Kind]Definition)
	registryMu sync.RWMutex
)

// Register adds an importer definition to the registry.
// Panics if an importer with the same kind is already registered.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Kind]; exists {
		panic(fmt.Sprintf("importer already registered: %s", def.Info.Kind))
	}

	// Every importer accepts create
	if len(def.Info.Operations) == 0 {
		def.Info.Operations = []Operation{OpCreate}
	}

	registry[def.Info.Kind] = def
}

// Get returns an importer definition by kind.
// Returns false if not found.
func Get(kind Kind) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

// Require is Get with an error suitable for returning to callers.
func Require(kind Kind) (Definition, error) {
	def, ok := Get(kind)
	if !ok {
		return Definition{}, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
	}
	return def, nil
}

// All returns all registered importer definitions.
// Sorted by group then by kind for consistent ordering.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.Group != result[j].Info.Group {
			return result[i].Info.Group < result[j].Info.Group
		}
		return result[i].Info.Kind < result[j].Info.Kind
	})

	return result
}

// ByGroup returns all importer definitions for a specific group.
// Sorted by kind for consistent ordering.
func ByGroup(group string) []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []Definition
	for _, def := range registry {
		if def.Info.Group == group {
			result = append(result, def)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Kind < result[j].Info.Kind
	})

	return result
}

// Groups returns all unique group names.
// Sorted alphabetically.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range registry {
		seen[def.Info.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// Count returns the number of registered importers.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered importers.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[Kind]Definition)
}
