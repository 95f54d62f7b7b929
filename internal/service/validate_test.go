package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-import/internal/models"
)

func patientMappings() []models.FieldMapping {
	return []models.FieldMapping{
		{SourceColumn: "Nome", TargetField: "name"},
		{SourceColumn: "Telefone", TargetField: "phone"},
		{SourceColumn: "Email", TargetField: "email"},
	}
}

func TestValidateMissingRequiredField(t *testing.T) {
	rows := []models.Row{
		{"Nome": "Maria", "Telefone": "(11) 98765-4321", "Email": "maria@example.com"},
		{"Nome": "", "Telefone": "(11) 91234-5678", "Email": "joao@example.com"},
	}

	result := Validate(rows, patientMappings(), models.DataTypePatients)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, "name", result.Errors[0].Field)
	assert.Equal(t, "missing required field", result.Errors[0].Message)
	assert.Equal(t, models.SeverityError, result.Errors[0].Severity)
	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.ValidRowCount)
	assert.Equal(t, 1, result.InvalidRowCount)
}

func TestValidateOptionalShapeIssuesAreWarnings(t *testing.T) {
	rows := []models.Row{
		{"Nome": "Maria", "Telefone": "123", "Email": "not-an-email"},
	}

	result := Validate(rows, patientMappings(), models.DataTypePatients)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 2)
	// Warning-only rows still count as valid.
	assert.Equal(t, 1, result.ValidRowCount)
	assert.Equal(t, 0, result.InvalidRowCount)
}

func TestValidateRequiredShapeIssueIsError(t *testing.T) {
	rows := []models.Row{
		{"Descrição": "Consulta", "Valor": "abc"},
	}
	mappings := []models.FieldMapping{
		{SourceColumn: "Descrição", TargetField: "description"},
		{SourceColumn: "Valor", TargetField: "amount"},
	}

	result := Validate(rows, mappings, models.DataTypeTransactions)

	assert.False(t, result.IsValid)
	found := false
	for _, issue := range result.Errors {
		if issue.Field == "amount" && issue.Message == "amount must be a positive number" {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, 1, result.InvalidRowCount)
}

func TestValidateNegativeAmountRejected(t *testing.T) {
	rows := []models.Row{
		{"Descrição": "Estorno", "Valor": "-50,00"},
	}
	mappings := []models.FieldMapping{
		{SourceColumn: "Descrição", TargetField: "description"},
		{SourceColumn: "Valor", TargetField: "amount"},
	}

	result := Validate(rows, mappings, models.DataTypeTransactions)
	assert.False(t, result.IsValid)
}

func TestValidateCollectsAllIssues(t *testing.T) {
	rows := []models.Row{
		{"Nome": "", "Telefone": "1", "Email": "x"},
		{"Nome": "", "Telefone": "2", "Email": "y"},
		{"Nome": "", "Telefone": "3", "Email": "z"},
	}

	result := Validate(rows, patientMappings(), models.DataTypePatients)

	// Never stops at the first failure.
	assert.Len(t, result.Errors, 3)
	assert.Len(t, result.Warnings, 6)
	assert.Equal(t, 3, result.InvalidRowCount)
}

func TestValidateIsPure(t *testing.T) {
	rows := []models.Row{
		{"Nome": "Maria", "Telefone": "(11) 98765-4321", "Email": "maria@example.com"},
	}
	original := models.Row{}
	for k, v := range rows[0] {
		original[k] = v
	}

	first := Validate(rows, patientMappings(), models.DataTypePatients)
	second := Validate(rows, patientMappings(), models.DataTypePatients)

	assert.Equal(t, first, second)
	assert.Equal(t, original, rows[0])
}

func TestValidateUnrecognizedDate(t *testing.T) {
	rows := []models.Row{
		{"Nome": "Maria", "Nascimento": "99/99/9999"},
	}
	mappings := []models.FieldMapping{
		{SourceColumn: "Nome", TargetField: "name"},
		{SourceColumn: "Nascimento", TargetField: "birth_date"},
	}

	result := Validate(rows, mappings, models.DataTypePatients)

	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "unrecognized date format", result.Warnings[0].Message)
	assert.Equal(t, "99/99/9999", result.Warnings[0].Value)
}
