package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Ref is a related object the backend renders either as a bare primary key,
// a bare name, or a nested object such as {"id": 3, "name": "Farm"}.
type Ref struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Ref) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = Ref{}
		return nil
	}

	switch trimmed[0] {
	case '{':
		type plain Ref
		var nested plain
		if err := json.Unmarshal(trimmed, &nested); err != nil {
			return fmt.Errorf("ref: %w", err)
		}
		*r = Ref(nested)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("ref: %w", err)
		}
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			*r = Ref{ID: id}
			return nil
		}
		*r = Ref{Name: s}
		return nil
	default:
		var id int64
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return fmt.Errorf("ref: %w", err)
		}
		*r = Ref{ID: id}
		return nil
	}
}

// String prefers the name and falls back to the id.
func (r Ref) String() string {
	if r.Name != "" {
		return r.Name
	}
	if r.ID != 0 {
		return strconv.FormatInt(r.ID, 10)
	}
	return ""
}
