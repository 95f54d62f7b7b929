package handler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-import/internal/models"
	"clinic-import/internal/service"
)

func writePatientCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patients.csv")
	content := "Nome,Telefone,Email\n" +
		"Maria da Silva,(11) 98765-4321,maria@example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func sessionWithMappings(t *testing.T, path string, mappings []models.FieldMapping) *models.ImportSession {
	t.Helper()
	raw, err := json.Marshal(mappings)
	require.NoError(t, err)
	return &models.ImportSession{
		SessionCode:  "IMP-test",
		DataType:     models.DataTypePatients,
		FilePath:     path,
		MappingsJSON: string(raw),
	}
}

func TestRebuildPipelineRestoresExactMappings(t *testing.T) {
	h := &ImportHandler{parserService: service.NewParserService()}

	// The user removed the email mapping before the restart; the rebuilt
	// pipeline must not resurrect it from auto-detection.
	session := sessionWithMappings(t, writePatientCSV(t), []models.FieldMapping{
		{SourceColumn: "Nome", TargetField: "name"},
		{SourceColumn: "Telefone", TargetField: "phone"},
	})

	pipeline, err := h.rebuildPipeline(session)
	require.NoError(t, err)

	mappings := pipeline.Mappings()
	require.Len(t, mappings, 2)
	targets := make(map[string]bool)
	for _, m := range mappings {
		targets[m.TargetField] = true
	}
	assert.True(t, targets["name"])
	assert.True(t, targets["phone"])
	assert.False(t, targets["email"])
}

func TestRebuildPipelineRestoresEmptySet(t *testing.T) {
	h := &ImportHandler{parserService: service.NewParserService()}
	session := sessionWithMappings(t, writePatientCSV(t), []models.FieldMapping{})

	pipeline, err := h.rebuildPipeline(session)
	require.NoError(t, err)
	assert.Empty(t, pipeline.Mappings())
}

func TestRebuildPipelineSkipsOrphanedMappings(t *testing.T) {
	h := &ImportHandler{parserService: service.NewParserService()}

	// A column that existed when the mapping was saved but is gone from the
	// file on disk is dropped, not restored against a dead header.
	session := sessionWithMappings(t, writePatientCSV(t), []models.FieldMapping{
		{SourceColumn: "Nome", TargetField: "name"},
		{SourceColumn: "Coluna Antiga", TargetField: "phone"},
	})

	pipeline, err := h.rebuildPipeline(session)
	require.NoError(t, err)

	mappings := pipeline.Mappings()
	require.Len(t, mappings, 1)
	assert.Equal(t, "name", mappings[0].TargetField)
}

func TestRebuildPipelineRejectsCorruptMappings(t *testing.T) {
	h := &ImportHandler{parserService: service.NewParserService()}
	session := &models.ImportSession{
		DataType:     models.DataTypePatients,
		FilePath:     writePatientCSV(t),
		MappingsJSON: "{not json",
	}

	_, err := h.rebuildPipeline(session)
	assert.Error(t, err)
}
