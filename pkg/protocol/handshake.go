package protocol

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is the protocol version this build of probitas speaks.
// Workers built against an incompatible Pool are rejected at ready
// time rather than failing confusingly mid-run.
const Version = "1.0.0"

// Constraint is the range of worker protocol versions a Pool accepts.
// Widened across minor/patch releases as the protocol evolves without
// breaking compatibility.
var Constraint = mustConstraint("^1.0.0")

func mustConstraint(expr string) *semver.Constraints {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		panic(fmt.Sprintf("protocol: invalid version constraint %q: %v", expr, err))
	}
	return c
}

// ReadyPayload is the body of a "ready" message: the worker announces
// its protocol version so the Pool can refuse a stale/incompatible
// child before dispatching any task to it.
type ReadyPayload struct {
	ProtocolVersion string `json:"protocolVersion"`
}

// CheckVersion reports whether a worker-announced version satisfies
// the Pool's Constraint.
func CheckVersion(announced string) error {
	v, err := semver.NewVersion(announced)
	if err != nil {
		return fmt.Errorf("parsing worker protocol version %q: %w", announced, err)
	}
	if !Constraint.Check(v) {
		return fmt.Errorf("worker protocol version %s does not satisfy %s", announced, Constraint)
	}
	return nil
}
