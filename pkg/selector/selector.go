// Package selector implements the boolean filter language used to pick
// Scenarios out of a loaded set (spec.md §4.1/§6).
//
//	expr     := term ("," term)*            -- AND within
//	atom     := ["!"] [type ":"] value
//	type     := "tag" | "name"
//	value    := /[^,!]+/   (trimmed)
//
// Atoms within one term (one -s occurrence) are AND-combined. Distinct
// terms (multiple -s occurrences) are OR-combined. With no selectors at
// all, every Scenario passes.
package selector

import (
	"strings"

	"github.com/probitas/probitas/pkg/definitions"
)

// AtomType is the field an Atom matches against.
type AtomType string

const (
	AtomTag  AtomType = "tag"
	AtomName AtomType = "name"
)

// Atom is one "[!] [type:] value" clause.
type Atom struct {
	Type    AtomType
	Value   string
	Negated bool
}

// Matches reports whether scenario satisfies this single atom.
func (a Atom) Matches(s *definitions.Scenario) bool {
	var hit bool
	switch a.Type {
	case AtomTag:
		hit = s.HasTag(a.Value)
	case AtomName:
		hit = strings.Contains(s.Name, a.Value)
	}
	if a.Negated {
		return !hit
	}
	return hit
}

// Term is a comma-separated list of Atoms, AND-combined.
type Term []Atom

// Matches reports whether scenario satisfies every atom in the term.
func (term Term) Matches(s *definitions.Scenario) bool {
	for _, a := range term {
		if !a.Matches(s) {
			return false
		}
	}
	return true
}

// Parse turns one "-s" expression into a Term (a list of AND-combined
// atoms). It fails with a *definitions.SelectorSyntaxError on an empty
// type prefix or an empty value.
func Parse(expr string) (Term, error) {
	rawAtoms := strings.Split(expr, ",")
	term := make(Term, 0, len(rawAtoms))
	for _, raw := range rawAtoms {
		atom, err := parseAtom(raw)
		if err != nil {
			return nil, err
		}
		term = append(term, atom)
	}
	return term, nil
}

func parseAtom(raw string) (Atom, error) {
	s := strings.TrimSpace(raw)

	negated := false
	for strings.HasPrefix(s, "!") {
		negated = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "!"))
	}

	atomType := AtomName
	value := s
	if idx := strings.Index(s, ":"); idx >= 0 {
		prefix := strings.TrimSpace(s[:idx])
		switch prefix {
		case string(AtomTag):
			atomType = AtomTag
			value = strings.TrimSpace(s[idx+1:])
		case string(AtomName):
			atomType = AtomName
			value = strings.TrimSpace(s[idx+1:])
		case "":
			return Atom{}, &definitions.SelectorSyntaxError{Expr: raw, Reason: "empty type prefix before ':'"}
		default:
			// Not a recognized type prefix — treat the whole thing as a
			// name value containing a literal colon.
			atomType = AtomName
			value = s
		}
	}

	if value == "" {
		return Atom{}, &definitions.SelectorSyntaxError{Expr: raw, Reason: "empty value"}
	}

	return Atom{Type: atomType, Value: value, Negated: negated}, nil
}

// Apply filters scenarios against the given set of Terms: a Scenario
// passes if it matches ANY term (OR across terms), and a term matches a
// Scenario if it matches EVERY atom in it (AND within the term). With no
// terms at all, every Scenario passes. Input order is preserved; the
// filter is stable and idempotent — Apply(Apply(s, terms), terms) ==
// Apply(s, terms).
func Apply(scenarios []*definitions.Scenario, terms []Term) []*definitions.Scenario {
	if len(terms) == 0 {
		out := make([]*definitions.Scenario, len(scenarios))
		copy(out, scenarios)
		return out
	}

	out := make([]*definitions.Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		for _, term := range terms {
			if term.Matches(s) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// ParseAll parses every expression in exprs (one per "-s" occurrence) into
// Terms, OR-combined by Apply. Returns the first parse error encountered.
func ParseAll(exprs []string) ([]Term, error) {
	terms := make([]Term, 0, len(exprs))
	for _, expr := range exprs {
		term, err := Parse(expr)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}
