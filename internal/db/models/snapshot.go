// snapshot.go defines the Snapshot tagged union carried by an audit entry's
// old_value/new_value slots. A snapshot is either a plain key/value mapping of a
// record's fields, or a ChangedFields list of per-field before/after diffs used
// by the student revision-request workflow. The shape is declared by the writer
// at construction time, never inferred from business context at read time.
package models

import (
	"encoding/json"
	"fmt"
)

// SnapshotKind discriminates the two snapshot shapes.
type SnapshotKind string

const (
	// SnapshotKeyValues is an arbitrary field → value mapping of a record.
	SnapshotKeyValues SnapshotKind = "key_values"
	// SnapshotFieldDiffs is a list of {field, oldValue, newValue} triples.
	SnapshotFieldDiffs SnapshotKind = "field_diffs"
)

// changedFieldsKey is the JSON property that marks the diff-list shape in the
// serialized form. It is reserved: a key/value snapshot must not use it as a
// top-level field name.
const changedFieldsKey = "ChangedFields"

// FieldDiff is one before/after change to a single field.
type FieldDiff struct {
	Field    string `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

// Snapshot is a point-in-time structured payload attached to an audit entry.
// It is immutable once written and never refers back to live data.
type Snapshot struct {
	Kind   SnapshotKind
	Values map[string]any
	Diffs  []FieldDiff
}

// KeyValues builds a key/value snapshot.
func KeyValues(values map[string]any) *Snapshot {
	return &Snapshot{Kind: SnapshotKeyValues, Values: values}
}

// FieldDiffs builds a diff-list snapshot.
func FieldDiffs(diffs ...FieldDiff) *Snapshot {
	return &Snapshot{Kind: SnapshotFieldDiffs, Diffs: diffs}
}

// MarshalJSON serializes the snapshot to its stored wire form: a plain JSON
// object for key/value snapshots, {"ChangedFields": [...]} for diff lists.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SnapshotFieldDiffs:
		diffs := s.Diffs
		if diffs == nil {
			diffs = []FieldDiff{}
		}
		return json.Marshal(map[string][]FieldDiff{changedFieldsKey: diffs})
	case SnapshotKeyValues:
		if s.Values == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(s.Values)
	default:
		return nil, fmt.Errorf("snapshot has unknown kind %q", s.Kind)
	}
}

// UnmarshalJSON restores a snapshot from its stored form. An object whose only
// top-level key is ChangedFields holding an array is a diff list; any other
// object is a key/value mapping.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("snapshot must be a JSON object: %w", err)
	}

	if cf, ok := raw[changedFieldsKey]; ok && len(raw) == 1 {
		var diffs []FieldDiff
		if err := json.Unmarshal(cf, &diffs); err != nil {
			return fmt.Errorf("decoding %s: %w", changedFieldsKey, err)
		}
		s.Kind = SnapshotFieldDiffs
		s.Diffs = diffs
		s.Values = nil
		return nil
	}

	values := make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("decoding snapshot field %q: %w", k, err)
		}
		values[k] = val
	}
	s.Kind = SnapshotKeyValues
	s.Values = values
	s.Diffs = nil
	return nil
}

// EncodeSnapshot renders a snapshot to the bytes stored in the JSONB column.
// A nil snapshot encodes to nil so SQL NULL stays NULL rather than becoming the
// string "null".
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// DecodeSnapshot is the inverse of EncodeSnapshot. Nil or empty input yields a
// nil snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
