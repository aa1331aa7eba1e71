// Package definitions holds the immutable data model shared by every other
// package in probitas: Scenario, Step, Resource, Setup and the runtime
// Context. Nothing in this package executes anything — it only describes.
package definitions

import "strconv"

// SourceLocation pins a definition back to the file and position it was
// authored at. The path is captured absolute at authoring time; display
// layers (reporters) may relativize it for the user.
type SourceLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// String renders the location the way error messages and reporters expect:
// "file:line:column", degrading gracefully when line/column are unset.
func (l SourceLocation) String() string {
	if l.File == "" {
		return ""
	}
	if l.Line == 0 {
		return l.File
	}
	if l.Column == 0 {
		return l.File + ":" + strconv.Itoa(l.Line)
	}
	return l.File + ":" + strconv.Itoa(l.Line) + ":" + strconv.Itoa(l.Column)
}
