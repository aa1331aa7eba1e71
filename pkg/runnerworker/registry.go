package runnerworker

import (
	"fmt"
	"sync"

	"github.com/probitas/probitas/pkg/definitions"
)

// Loader resolves a scenario file path (as carried on a "run" message,
// spec.md §4.5) to the ordered Scenarios that file defines. The fluent
// builder DSL scenario authors use to construct a Scenario is out of
// scope for the core (spec.md §1, "the core consumes built definitions,
// not the builder") — Loader's only job is to hand back the already-built
// value for a given file identity.
type Loader interface {
	Load(filePath string) ([]*definitions.Scenario, error)
}

// Registry is a process-wide table of filePath -> Scenarios. A worker
// binary is built by linking the user's scenario files alongside
// cmd/probitas-worker; each scenario file registers its built Scenarios
// under its own path from an init() function, the same way this
// repository's pack expects generated code to self-register rather than
// be discovered by runtime reflection over a dynamic module path.
type Registry struct {
	mu    sync.RWMutex
	files map[string][]*definitions.Scenario
}

// DefaultRegistry is the Registry scenario files register into from
// their init() functions; cmd/probitas-worker loads from it unless a
// caller supplies its own Loader.
var DefaultRegistry = NewRegistry()

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{files: make(map[string][]*definitions.Scenario)}
}

// Register appends scenarios under filePath. Safe to call from multiple
// init() functions across a binary's linked packages.
func (r *Registry) Register(filePath string, scenarios ...*definitions.Scenario) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[filePath] = append(r.files[filePath], scenarios...)
}

// Load implements Loader.
func (r *Registry) Load(filePath string) ([]*definitions.Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scenarios, ok := r.files[filePath]
	if !ok {
		return nil, fmt.Errorf("no scenarios registered for %q", filePath)
	}
	return scenarios, nil
}

var _ Loader = (*Registry)(nil)
