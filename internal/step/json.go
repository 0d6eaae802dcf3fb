package step

import (
	"encoding/json"
	"fmt"
)

// envelope is used for initial JSON unmarshaling to determine the step type.
type envelope struct {
	Type string `json:"type"`
}

// Unmarshal decodes a JSON step into its concrete type.
func Unmarshal(data []byte) (Step, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to determine step type: %w", err)
	}

	var s Step
	switch env.Type {
	case TypeShellCommand:
		s = &ShellCommand{}
	case TypeFileDeployment:
		s = &FileDeployment{}
	case TypeServiceOperation:
		s = &ServiceOperation{}
	case TypeSQLDeployment:
		s = &SQLDeployment{}
	case TypeRemotePlaybook:
		s = &RemotePlaybook{}
	case TypeHelmUpgrade:
		s = &HelmUpgrade{}
	default:
		return nil, fmt.Errorf("unknown step type: %q", env.Type)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s step: %w", env.Type, err)
	}
	return s, nil
}

// Marshal encodes a step with its type field included.
func Marshal(s Step) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m["type"] = s.StepType()

	return json.Marshal(m)
}

// List is an ordered set of steps that encodes as a JSON array of typed steps.
type List []Step

func (l *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal steps array: %w", err)
	}

	steps := make(List, 0, len(raw))
	for i, r := range raw {
		s, err := Unmarshal(r)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		steps = append(steps, s)
	}
	*l = steps
	return nil
}

func (l List) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for _, s := range l {
		data, err := Marshal(s)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return json.Marshal(out)
}
