package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/frontdesk-api/internal/models"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

// visitorFieldAliases maps accepted payload keys to column names.
var visitorFieldAliases = func() map[string]string {
	aliases := make(map[string]string, len(models.EditableVisitorFields)*2)
	for _, field := range models.EditableVisitorFields {
		aliases[field] = field
		aliases[snakeToCamel(field)] = field
	}
	return aliases
}()

var choiceFields = map[string]struct{}{
	models.FieldPurpose:      {},
	models.FieldPersonToMeet: {},
	models.FieldUnit:         {},
}

// normalizeVisitorChanges turns a raw payload into a FieldMap keyed by column name with
// values in their stored string form.
func normalizeVisitorChanges(payload map[string]json.RawMessage, validate *validator.Validate) (models.FieldMap, error) {
	if len(payload) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one field change is required")
	}
	changes := make(models.FieldMap, len(payload))
	for key, raw := range payload {
		field, ok := visitorFieldAliases[key]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("field %s cannot be edited", key))
		}
		if _, dup := changes[field]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("field %s given more than once", field))
		}
		value, err := decodeFieldValue(field, raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		changes[field] = value
	}

	if v, ok := changes[models.FieldFullName]; ok && v == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "full_name cannot be blank")
	}
	if v, ok := changes[models.FieldPurpose]; ok && models.ParseChoice(v).IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "purpose cannot be blank")
	}
	if v, ok := changes[models.FieldEmail]; ok && validate != nil {
		if err := validate.Var(v, "omitempty,email"); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "email must be a valid address")
		}
	}
	return changes, nil
}

func decodeFieldValue(field string, raw json.RawMessage) (string, error) {
	if _, ok := choiceFields[field]; ok {
		var choice models.Choice
		if err := json.Unmarshal(raw, &choice); err != nil {
			return "", fmt.Errorf("%s must be a string or a {kind, value} object", field)
		}
		choice.Text = strings.TrimSpace(choice.Text)
		return choice.String(), nil
	}
	if field == models.FieldDocumentRequested {
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return strconv.FormatBool(b), nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if parsed, perr := strconv.ParseBool(strings.TrimSpace(s)); perr == nil {
				return strconv.FormatBool(parsed), nil
			}
		}
		return "", fmt.Errorf("%s must be a boolean", field)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s must be a string", field)
	}
	return strings.TrimSpace(s), nil
}

// diffVisitor returns the proposed values that differ from the record and the values they
// replace. Both maps carry exactly the same keys.
func diffVisitor(record *models.VisitorRecord, proposed models.FieldMap) (changes, original models.FieldMap) {
	current := record.FieldValues()
	changes = models.FieldMap{}
	original = models.FieldMap{}
	for field, value := range proposed {
		old, ok := current[field]
		if !ok || old == value {
			continue
		}
		changes[field] = value
		original[field] = old
	}
	return changes, original
}

func applyVisitorChanges(record *models.VisitorRecord, changes models.FieldMap) error {
	for _, field := range changes.Keys() {
		if err := record.SetField(field, changes[field]); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
	}
	return nil
}

func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
