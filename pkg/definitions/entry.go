package definitions

import "context"

// Disposer is the structural "disposal capability" from spec.md §9: any
// value a Resource factory or Setup hook produces that exposes a Dispose
// method is torn down automatically, sync or async alike (Dispose always
// takes a context so an async disposal can itself be cancelled).
type Disposer interface {
	Dispose(context.Context) error
}

// CleanupFunc is a nullary cleanup callable, the other half of the
// Cleanup union alongside Disposer.
type CleanupFunc func(context.Context) error

// StepFunc is the callable body of a Step. It receives the running
// Scenario's Context and returns either a value or a Failure — in Go,
// either a non-nil error (Failure) or a value with a nil error.
type StepFunc func(context.Context, *Context) (any, error)

// ResourceFactory produces a named value once per Scenario run. If the
// returned value implements Disposer, the Engine disposes it during
// teardown.
type ResourceFactory func(context.Context, *Context) (any, error)

// SetupFunc runs at its declaration position. It may return a Cleanup:
// nil, a CleanupFunc, or a Disposer. Any other returned value is ignored
// for teardown purposes but still returned to the caller for symmetry with
// ResourceFactory's signature — scenario authors can discard it.
type SetupFunc func(context.Context, *Context) (any, error)

// asCleanup normalizes a Setup/Resource's returned value into a single
// teardown closure, or returns ok=false when the value carries no
// disposal capability at all.
func asCleanup(value any) (cleanup func(context.Context) error, ok bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case CleanupFunc:
		return func(ctx context.Context) error { return v(ctx) }, true
	case func(context.Context) error:
		return v, true
	case Disposer:
		return v.Dispose, true
	default:
		return nil, false
	}
}

// EntryKind tags the union held by Entry.
type EntryKind string

const (
	EntryResource EntryKind = "resource"
	EntrySetup    EntryKind = "setup"
	EntryStep     EntryKind = "step"
)

// Step is a named unit of user work with timeout and retry options.
type Step struct {
	Name    string
	Fn      StepFunc
	Options StepOptions
	Origin  SourceLocation
}

// Resource is a named value produced once per Scenario and available to
// every later entry through Context.Resource.
type Resource struct {
	Name    string
	Factory ResourceFactory
	Origin  SourceLocation
}

// Setup is a hook run at its declaration position; it may return a
// Cleanup that the Engine invokes in teardown.
type Setup struct {
	Fn     SetupFunc
	Origin SourceLocation
}

// Entry is the tagged union {kind, value} that makes up a Scenario's
// ordered entry list. Exactly one of Resource/Setup/Step is set,
// matching Kind.
type Entry struct {
	Kind     EntryKind
	Resource Resource
	Setup    Setup
	Step     Step
}

// NewResourceEntry builds an Entry wrapping a Resource declaration.
func NewResourceEntry(r Resource) Entry { return Entry{Kind: EntryResource, Resource: r} }

// NewSetupEntry builds an Entry wrapping a Setup declaration.
func NewSetupEntry(s Setup) Entry { return Entry{Kind: EntrySetup, Setup: s} }

// NewStepEntry builds an Entry wrapping a Step declaration.
func NewStepEntry(s Step) Entry { return Entry{Kind: EntryStep, Step: s} }
