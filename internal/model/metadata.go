package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is the free-form key-value bag carried by most entities. It is
// stored as a JSON text column.
type Metadata map[string]any

// Value implements driver.Valuer. Nil maps serialize as an empty object so
// the column never holds NULL.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scan metadata: unsupported type %T", src)
	}
	if len(data) == 0 {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Merge returns a new map holding m overlaid with in: keys present in `in`
// replace keys in m, all other keys of m survive. Neither input is modified.
func (m Metadata) Merge(in Metadata) Metadata {
	out := make(Metadata, len(m)+len(in))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range in {
		out[k] = v
	}
	return out
}
