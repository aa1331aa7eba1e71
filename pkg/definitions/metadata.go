package definitions

// StepMetadata is the serializable projection of a Step with its Fn
// stripped — this is what crosses the worker protocol boundary.
type StepMetadata struct {
	Name    string         `json:"name"`
	Options StepOptions    `json:"options"`
	Origin  SourceLocation `json:"origin,omitempty"`
}

// Metadata projects a Step into its serializable form.
func (s Step) Metadata() StepMetadata {
	return StepMetadata{Name: s.Name, Options: s.Options, Origin: s.Origin}
}

// ScenarioMetadata is the serializable projection of a Scenario with every
// Fn/Factory stripped.
type ScenarioMetadata struct {
	Name    string         `json:"name"`
	Tags    []string       `json:"tags,omitempty"`
	Options StepOptions    `json:"options"`
	Steps   []StepMetadata `json:"steps"`
	Origin  SourceLocation `json:"origin,omitempty"`
}

// Metadata projects a Scenario into its serializable form.
func (s *Scenario) Metadata() ScenarioMetadata {
	steps := s.Steps()
	out := make([]StepMetadata, len(steps))
	for i, st := range steps {
		out[i] = st.Metadata()
	}
	return ScenarioMetadata{
		Name:    s.Name,
		Tags:    s.SortedTags(),
		Options: s.Options,
		Steps:   out,
		Origin:  s.Origin,
	}
}
