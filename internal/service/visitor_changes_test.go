package service

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/frontdesk-api/internal/models"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

func rawPayload(t *testing.T, body string) map[string]json.RawMessage {
	t.Helper()
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	return payload
}

func TestNormalizeVisitorChangesAcceptsAliases(t *testing.T) {
	changes, err := normalizeVisitorChanges(rawPayload(t, `{
		"fullName": " Ana Putri ",
		"person_to_meet": {"kind": "custom", "value": "Pak Budi"},
		"unit": "Other: Lab 2",
		"documentRequested": "true"
	}`), validator.New())
	require.NoError(t, err)
	assert.Equal(t, models.FieldMap{
		"full_name":          "Ana Putri",
		"person_to_meet":     "Other: Pak Budi",
		"unit":               "Other: Lab 2",
		"document_requested": "true",
	}, changes)
}

func TestNormalizeVisitorChangesRejects(t *testing.T) {
	cases := map[string]string{
		"empty":         `{}`,
		"unknown field": `{"check_in_time": "2026-01-01"}`,
		"duplicate":     `{"full_name": "A", "fullName": "B"}`,
		"non string":    `{"phone": 123}`,
		"blank name":    `{"full_name": "  "}`,
		"blank purpose": `{"purpose": ""}`,
		"bad email":     `{"email": "not-an-email"}`,
		"bad bool":      `{"document_requested": "maybe"}`,
		"bad choice":    `{"unit": {"kind": "weird", "value": "x"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := normalizeVisitorChanges(rawPayload(t, body), validator.New())
			require.Error(t, err)
			assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
		})
	}
}

func TestDiffVisitorOnlyChangedFields(t *testing.T) {
	record := &models.VisitorRecord{FullName: "Ana", Phone: "111", Email: "ana@example.com"}

	changes, original := diffVisitor(record, models.FieldMap{"phone": "999", "full_name": "Ana"})
	assert.Equal(t, models.FieldMap{"phone": "999"}, changes)
	assert.Equal(t, models.FieldMap{"phone": "111"}, original)

	changes, original = diffVisitor(record, models.FieldMap{"phone": "111"})
	assert.Empty(t, changes)
	assert.Empty(t, original)
}

func TestApplyVisitorChanges(t *testing.T) {
	record := &models.VisitorRecord{Phone: "111"}
	require.NoError(t, applyVisitorChanges(record, models.FieldMap{"phone": "999", "purpose": "Other: Audit"}))
	assert.Equal(t, "999", record.Phone)
	assert.Equal(t, models.CustomChoice("Audit"), record.Purpose)
}

func TestSnakeToCamel(t *testing.T) {
	assert.Equal(t, "personToMeet", snakeToCamel("person_to_meet"))
	assert.Equal(t, "phone", snakeToCamel("phone"))
	assert.Equal(t, "idNumber", snakeToCamel("id_number"))
}
