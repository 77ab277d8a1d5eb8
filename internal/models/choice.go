package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ChoiceKind distinguishes list-backed values from free text typed by staff.
type ChoiceKind string

const (
	ChoicePredefined ChoiceKind = "predefined"
	ChoiceCustom     ChoiceKind = "custom"
)

// CustomChoicePrefix marks free-text values in stored rows. Decoding strips exactly
// len(CustomChoicePrefix) characters, so existing rows keep their meaning.
const CustomChoicePrefix = "Other: "

// Choice is a dropdown-backed field (purpose, unit, person to meet) that may carry a
// custom value instead of one of the configured options.
type Choice struct {
	Kind ChoiceKind `json:"kind"`
	Text string     `json:"value"`
}

// PredefinedChoice wraps a configured option.
func PredefinedChoice(value string) Choice {
	return Choice{Kind: ChoicePredefined, Text: value}
}

// CustomChoice wraps free text.
func CustomChoice(value string) Choice {
	return Choice{Kind: ChoiceCustom, Text: value}
}

// ParseChoice decodes the stored string form.
func ParseChoice(raw string) Choice {
	if strings.HasPrefix(raw, CustomChoicePrefix) {
		return CustomChoice(raw[len(CustomChoicePrefix):])
	}
	return PredefinedChoice(raw)
}

// String returns the stored string form.
func (c Choice) String() string {
	if c.Kind == ChoiceCustom {
		return CustomChoicePrefix + c.Text
	}
	return c.Text
}

// IsZero reports whether the choice carries no value.
func (c Choice) IsZero() bool {
	return c.Text == ""
}

// Value implements driver.Valuer.
func (c Choice) Value() (driver.Value, error) {
	return c.String(), nil
}

// Scan implements sql.Scanner.
func (c *Choice) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = Choice{}
	case string:
		*c = ParseChoice(v)
	case []byte:
		*c = ParseChoice(string(v))
	default:
		return fmt.Errorf("choice: unsupported scan type %T", src)
	}
	return nil
}

// MarshalJSON always emits the tagged object form.
func (c Choice) MarshalJSON() ([]byte, error) {
	kind := c.Kind
	if kind == "" {
		kind = ChoicePredefined
	}
	return json.Marshal(struct {
		Kind  ChoiceKind `json:"kind"`
		Value string     `json:"value"`
	}{Kind: kind, Value: c.Text})
}

// UnmarshalJSON accepts the tagged object or the legacy string.
func (c *Choice) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*c = Choice{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		*c = ParseChoice(raw)
		return nil
	}
	var obj struct {
		Kind  ChoiceKind `json:"kind"`
		Value string     `json:"value"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	switch obj.Kind {
	case "", ChoicePredefined:
		*c = PredefinedChoice(obj.Value)
	case ChoiceCustom:
		*c = CustomChoice(obj.Value)
	default:
		return fmt.Errorf("choice: unknown kind %q", obj.Kind)
	}
	return nil
}
