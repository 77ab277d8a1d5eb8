package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// FieldMap holds visitor field values keyed by column name. It is persisted as JSONB.
type FieldMap map[string]string

// Keys returns the field names in sorted order.
func (m FieldMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value implements driver.Valuer.
func (m FieldMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	// lib/pq sends []byte as bytea, which jsonb columns reject.
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (m *FieldMap) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("field map: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	decoded := map[string]string{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("field map: %w", err)
	}
	*m = decoded
	return nil
}
