package definitions

import (
	"fmt"
	"sort"
)

// Scenario is an ordered list of entries executed in one isolated worker
// to produce one ScenarioResult. It is immutable after construction — the
// fluent builder DSL that assembles one is out of scope here; this package
// only consumes the built value.
type Scenario struct {
	Name    string
	Tags    map[string]struct{}
	Options StepOptions
	Entries []Entry
	Origin  SourceLocation
}

// NewScenario constructs a Scenario from a tag slice, validating the
// invariants the Engine relies on (unique resource names). Loaders
// (pkg/runnerworker) call this after decoding an external definition.
func NewScenario(name string, tags []string, options StepOptions, entries []Entry, origin SourceLocation) (*Scenario, error) {
	s := &Scenario{
		Name:    name,
		Tags:    make(map[string]struct{}, len(tags)),
		Options: options,
		Entries: entries,
		Origin:  origin,
	}
	for _, t := range tags {
		s.Tags[t] = struct{}{}
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scenario) validate() error {
	seen := make(map[string]struct{})
	for _, e := range s.Entries {
		if e.Kind != EntryResource {
			continue
		}
		if e.Resource.Name == "" {
			return fmt.Errorf("scenario %q: resource entry missing a name", s.Name)
		}
		if _, dup := seen[e.Resource.Name]; dup {
			return fmt.Errorf("scenario %q: duplicate resource name %q", s.Name, e.Resource.Name)
		}
		seen[e.Resource.Name] = struct{}{}
	}
	return nil
}

// HasTag reports whether tag was declared on the Scenario.
func (s *Scenario) HasTag(tag string) bool {
	_, ok := s.Tags[tag]
	return ok
}

// SortedTags returns the Scenario's tags as a stable, sorted slice — used
// by metadata projection and reporters, never by the hot path.
func (s *Scenario) SortedTags() []string {
	out := make([]string, 0, len(s.Tags))
	for t := range s.Tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Steps returns the Step entries in declaration order.
func (s *Scenario) Steps() []Step {
	out := make([]Step, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.Kind == EntryStep {
			out = append(out, e.Step)
		}
	}
	return out
}
