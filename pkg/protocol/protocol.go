// Package protocol defines the newline-delimited JSON wire contract
// between the Pool (parent) and a Runner Worker (child) process
// (spec.md §4.5). Messages are tagged unions discriminated by a "type"
// field; Encode/Decode round-trip them one line per message.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/probitas/probitas/pkg/definitions"
)

// MessageType discriminates the envelope's payload.
type MessageType string

const (
	// Parent -> child
	TypeRun       MessageType = "run"
	TypeTerminate MessageType = "terminate"

	// Child -> parent
	TypeReady         MessageType = "ready"
	TypeScenarioStart MessageType = "scenario_start"
	TypeScenarioEnd   MessageType = "scenario_end"
	TypeStepStart     MessageType = "step_start"
	TypeStepEnd       MessageType = "step_end"
	TypeResult        MessageType = "result"
	TypeError         MessageType = "error"
)

// RunPayload is the body of a "run" message: dispatch one Scenario to
// the child by file path and index, since files may export either a
// single Scenario or an ordered list.
type RunPayload struct {
	TaskID        string `json:"taskId"`
	FilePath      string `json:"filePath"`
	ScenarioIndex int    `json:"scenarioIndex"`
	TimeoutMS     int64  `json:"timeout,omitempty"`
	LogLevel      string `json:"logLevel,omitempty"`
}

// ScenarioEventPayload backs scenario_start and (with Result set)
// scenario_end.
type ScenarioEventPayload struct {
	TaskID   string                      `json:"taskId"`
	Scenario definitions.ScenarioMetadata `json:"scenario"`
	Result   *definitions.ScenarioResult `json:"result,omitempty"`
}

// StepEventPayload backs step_start and (with Result set) step_end.
type StepEventPayload struct {
	TaskID   string                      `json:"taskId"`
	Scenario definitions.ScenarioMetadata `json:"scenario"`
	Step     definitions.StepMetadata    `json:"step"`
	Result   *definitions.StepResult     `json:"result,omitempty"`
}

// ResultPayload is the terminal success message for a task.
type ResultPayload struct {
	TaskID string                     `json:"taskId"`
	Result definitions.ScenarioResult `json:"result"`
}

// ErrorPayload is the terminal engine-level-failure message for a
// task (e.g. the scenario file failed to load).
type ErrorPayload struct {
	TaskID string                `json:"taskId"`
	Error  *definitions.ErrorObject `json:"error"`
}

// Encode renders typ plus a payload struct (or nil for Ready/Terminate)
// as one newline-terminated JSON line.
func Encode(typ MessageType, payload any) ([]byte, error) {
	var body map[string]any
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s payload: %w", typ, err)
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("flattening %s payload: %w", typ, err)
		}
	}
	if body == nil {
		body = make(map[string]any)
	}
	body["type"] = string(typ)

	out, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s envelope: %w", typ, err)
	}
	return append(out, '\n'), nil
}

// Peek reports only the envelope's type, deferring payload decoding
// to the caller once it knows which concrete struct to use.
func Peek(line []byte) (MessageType, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return "", fmt.Errorf("decoding envelope: %w", err)
	}
	return head.Type, nil
}

// Decode unmarshals line's flattened fields into dst (a pointer to one
// of the *Payload structs), ignoring the "type" discriminator field.
func Decode(line []byte, dst any) error {
	if err := json.Unmarshal(line, dst); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}
