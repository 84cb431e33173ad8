// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each HTTP feature lives under components/<name>.  Unlike a plain init()
// registration, components here need live dependencies (the reset driver,
// the menu catalog), so cmd/web constructs them and calls Register().
// Mount() then attaches every component's Routes() at its Pattern() in
// name order.  Patterns must not collide; chi panics on a duplicate mount.

package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Component contract.
//
// Routes() returns a router with paths relative to Pattern(), e.g. for
// Pattern() == "/api/restaurants":
//
//	r := chi.NewRouter()
//	r.Post("/{restaurantID}/prep-estimate", c.estimate)
//	return r
type Component interface {
	Name() string
	Pattern() string
	Routes() chi.Router
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register adds c.  A second component with the same name is an error.
func Register(c Component) error {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[c.Name()]; dup {
		return fmt.Errorf("component %q already registered", c.Name())
	}
	registry[c.Name()] = c
	return nil
}

// All returns every registered component sorted by name.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Mount attaches every registered component to r.
func Mount(r chi.Router) {
	for _, c := range All() {
		r.Mount(c.Pattern(), c.Routes())
	}
}

