package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-import/internal/models"
)

func TestFindMatchingField(t *testing.T) {
	tests := []struct {
		header   string
		dataType models.TargetDataType
		expected string
	}{
		{"Nome", models.DataTypePatients, "name"},
		{"NOME COMPLETO", models.DataTypePatients, "name"},
		{"Telefone", models.DataTypePatients, "phone"},
		{"celular", models.DataTypePatients, "phone"},
		{"WhatsApp", models.DataTypePatients, "phone"},
		{"E-mail", models.DataTypePatients, "email"},
		{"Data de Nascimento", models.DataTypePatients, "birth_date"},
		{"CPF", models.DataTypePatients, "cpf"},
		{"birth_date", models.DataTypePatients, "birth_date"},
		{"Paciente", models.DataTypeProcedures, "patient_name"},
		{"Procedimento", models.DataTypeProcedures, "name"},
		{"Valor", models.DataTypeProcedures, "value"},
		{"Descrição", models.DataTypeTransactions, "description"},
		{"Tipo", models.DataTypeTransactions, "type"},
		{"coluna_desconhecida", models.DataTypePatients, ""},
		{"", models.DataTypePatients, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FindMatchingField(tt.header, tt.dataType), "header %q", tt.header)
	}
}

func TestFindMatchingFieldExactKeyWins(t *testing.T) {
	// "name" is both a schema key and a synonym of patient_name on procedures;
	// the schema key must win.
	assert.Equal(t, "name", FindMatchingField("name", models.DataTypeProcedures))
}

func TestAutoDetectMappings(t *testing.T) {
	headers := []string{"Nome", "Telefone", "Email"}
	mappings := AutoDetectMappings(headers, models.DataTypePatients)

	require.Len(t, mappings, 3)
	assert.Equal(t, "name", mappings[0].TargetField)
	assert.Equal(t, "Nome", mappings[0].SourceColumn)
	assert.Equal(t, "phone", mappings[1].TargetField)
	assert.Equal(t, "email", mappings[2].TargetField)

	// No required field left unmapped, so the mapping stage can be skipped.
	assert.Empty(t, UnmappedRequiredFields(mappings, models.DataTypePatients))
}

func TestAutoDetectMappingsDistinctTargets(t *testing.T) {
	// Both headers resolve to "name"; the first claims it, the second is dropped.
	headers := []string{"Nome", "Nome Completo", "Telefone"}
	mappings := AutoDetectMappings(headers, models.DataTypePatients)

	targets := make(map[string]int)
	for _, m := range mappings {
		targets[m.TargetField]++
	}
	for field, count := range targets {
		assert.Equal(t, 1, count, "target %q claimed more than once", field)
	}
	require.Len(t, mappings, 2)
	assert.Equal(t, "Nome", mappings[0].SourceColumn)
}

func TestAutoDetectMappingsDeterministic(t *testing.T) {
	headers := []string{"Paciente", "Procedimento", "Data", "Valor", "Status"}
	first := AutoDetectMappings(headers, models.DataTypeProcedures)
	second := AutoDetectMappings(headers, models.DataTypeProcedures)
	assert.Equal(t, first, second)
}

func TestUnmappedRequiredFields(t *testing.T) {
	mappings := []models.FieldMapping{
		{SourceColumn: "Valor", TargetField: "amount"},
	}
	missing := UnmappedRequiredFields(mappings, models.DataTypeTransactions)
	assert.Equal(t, []string{"description"}, missing)

	assert.Equal(t, []string{"patient_name", "name"},
		UnmappedRequiredFields(nil, models.DataTypeProcedures))
}

func TestMappingsValid(t *testing.T) {
	headers := []string{"Nome", "Telefone"}
	valid := []models.FieldMapping{{SourceColumn: "Nome", TargetField: "name"}}
	orphaned := []models.FieldMapping{{SourceColumn: "Email", TargetField: "email"}}

	assert.True(t, MappingsValid(valid, headers))
	assert.False(t, MappingsValid(orphaned, headers))
	assert.True(t, MappingsValid(nil, headers))
}

func TestUpsertMappingReplaces(t *testing.T) {
	mappings := []models.FieldMapping{
		{SourceColumn: "Nome", TargetField: "name"},
		{SourceColumn: "Telefone", TargetField: "phone"},
	}
	out := upsertMapping(mappings, models.FieldMapping{SourceColumn: "Nome Completo", TargetField: "name"})

	require.Len(t, out, 2)
	var nameSource string
	for _, m := range out {
		if m.TargetField == "name" {
			nameSource = m.SourceColumn
		}
	}
	assert.Equal(t, "Nome Completo", nameSource)
}
