package store

import "encoding/json"

// knownStateFields lists the JSON keys SharedState's named fields occupy,
// used to separate "extra" unknown fields during marshal/unmarshal so a
// read-modify-write merge preserves data written by a newer process.
var knownStateFields = map[string]bool{
	"session_id":      true,
	"goal":            true,
	"status":          true,
	"turns_completed":  true,
	"turns_max":       true,
	"progress":        true,
	"blockers":        true,
	"files_changed":   true,
	"artifacts":       true,
	"fallback_events": true,
	"cost_usd":        true,
	"updated_at":      true,
	"error_summary":   true,
}

// MarshalJSON writes the named fields plus any preserved unknown ones.
func (s SharedState) MarshalJSON() ([]byte, error) {
	type alias SharedState
	named, err := json.Marshal(alias(s))
	if err != nil {
		return nil, err
	}

	if len(s.extra) == 0 {
		return named, nil
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(named, &merged); err != nil {
		return nil, err
	}
	for k, v := range s.extra {
		if knownStateFields[k] {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// UnmarshalJSON populates named fields and stashes anything else in extra.
func (s *SharedState) UnmarshalJSON(data []byte) error {
	type alias SharedState
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = SharedState(a)

	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := map[string]any{}
	for k, v := range raw {
		if !knownStateFields[k] {
			extra[k] = v
		}
	}
	s.extra = extra
	return nil
}
