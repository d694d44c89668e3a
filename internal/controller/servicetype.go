package controller

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wrenchsim/daemon/internal/engine"
	"github.com/wrenchsim/daemon/internal/model"
)

// serviceFactory starts a compute service of one registered type.
type serviceFactory func(sim *engine.Simulation, name, headHost string) (model.ComputeService, error)

// serviceTypeRegistry dispatches addService requests by service_type. It is
// the same register/resolve/list shape this codebase uses for its other
// pluggable-backend surface, repurposed here for compute service types.
type serviceTypeRegistry struct {
	mu    sync.RWMutex
	types map[string]serviceFactory
}

func newServiceTypeRegistry() *serviceTypeRegistry {
	return &serviceTypeRegistry{types: make(map[string]serviceFactory)}
}

// Register adds a service type to the registry under the given name.
func (r *serviceTypeRegistry) Register(name string, f serviceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = f
}

// Resolve returns the factory registered for typeName, or an error naming
// the unknown type.
func (r *serviceTypeRegistry) Resolve(typeName string) (serviceFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.types[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown service type %q", typeName)
	}
	return f, nil
}

// List returns the registered type names, sorted for a stable response.
func (r *serviceTypeRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultServiceTypeRegistry registers every service type this build
// supports. Only compute_baremetal exists today; a second type is added
// here as a registration, not by touching the controller's dispatch path.
func defaultServiceTypeRegistry() *serviceTypeRegistry {
	r := newServiceTypeRegistry()
	r.Register(model.ComputeBaremetal, func(sim *engine.Simulation, name, headHost string) (model.ComputeService, error) {
		return sim.StartComputeService(name, headHost)
	})
	return r
}
