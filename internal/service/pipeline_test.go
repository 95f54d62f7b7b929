package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-import/internal/models"
)

func patientTable() *models.ParsedTable {
	return &models.ParsedTable{
		Headers: []string{"Nome", "Telefone", "Email"},
		Rows: []models.Row{
			{"Nome": "Maria da Silva", "Telefone": "(11) 98765-4321", "Email": "maria@example.com"},
			{"Nome": "João Pereira", "Telefone": "(21) 91234-5678", "Email": "joao@example.com"},
		},
		TotalRows: 2,
	}
}

func TestNewPipelineRejectsUnknownDataType(t *testing.T) {
	_, err := NewPipeline("invoices")
	assert.Error(t, err)
}

func TestPipelineSkipsMappingWhenRequiredCovered(t *testing.T) {
	p, err := NewPipeline(models.DataTypePatients)
	require.NoError(t, err)
	require.NoError(t, p.AttachTable(patientTable()))
	assert.Equal(t, models.StagePreview, p.Stage())

	stage, err := p.ProceedFromPreview()
	require.NoError(t, err)

	// All required fields auto-mapped, so the wizard jumps straight to a
	// completed validation.
	assert.Equal(t, models.StageValidation, stage)
	require.NotNil(t, p.Validation())
	assert.True(t, p.Validation().IsValid)
}

func TestPipelineStopsAtMappingWhenRequiredMissing(t *testing.T) {
	p, err := NewPipeline(models.DataTypeTransactions)
	require.NoError(t, err)

	// Headers cover amount but not description.
	table := &models.ParsedTable{
		Headers:   []string{"Valor", "Data"},
		Rows:      []models.Row{{"Valor": "100,00", "Data": "05/03/2024"}},
		TotalRows: 1,
	}
	require.NoError(t, p.AttachTable(table))

	stage, err := p.ProceedFromPreview()
	require.NoError(t, err)
	assert.Equal(t, models.StageMapping, stage)
	assert.Nil(t, p.Validation())
}

func TestPipelineMappingEditInvalidatesValidation(t *testing.T) {
	p, err := NewPipeline(models.DataTypePatients)
	require.NoError(t, err)
	require.NoError(t, p.AttachTable(patientTable()))

	_, err = p.RunValidation()
	require.NoError(t, err)
	require.NotNil(t, p.Validation())
	assert.Equal(t, models.StageValidation, p.Stage())

	require.NoError(t, p.AddMapping("Telefone", "phone"))

	// The held result is stale now; the wizard falls back to mapping.
	assert.Nil(t, p.Validation())
	assert.Equal(t, models.StageMapping, p.Stage())
}

func TestPipelineRemoveMappingInvalidatesValidation(t *testing.T) {
	p, err := NewPipeline(models.DataTypePatients)
	require.NoError(t, err)
	require.NoError(t, p.AttachTable(patientTable()))

	_, err = p.RunValidation()
	require.NoError(t, err)

	require.NoError(t, p.RemoveMapping("email"))
	assert.Nil(t, p.Validation())
}

func TestPipelineAddMappingRejectsUnknowns(t *testing.T) {
	p, err := NewPipeline(models.DataTypePatients)
	require.NoError(t, err)
	require.NoError(t, p.AttachTable(patientTable()))

	assert.Error(t, p.AddMapping("Nome", "nonexistent_field"))
	assert.Error(t, p.AddMapping("Coluna Fantasma", "name"))
}

func TestPipelineStartImportPreconditions(t *testing.T) {
	p, err := NewPipeline(models.DataTypePatients)
	require.NoError(t, err)
	importer := NewImporter(newFakeStore())

	// No table yet.
	_, err = p.StartImport(context.Background(), importer, models.ImportOptions{}, nil)
	assert.Error(t, err)

	require.NoError(t, p.AttachTable(patientTable()))

	// No validation yet.
	_, err = p.StartImport(context.Background(), importer, models.ImportOptions{}, nil)
	assert.Error(t, err)

	_, err = p.RunValidation()
	require.NoError(t, err)

	result, err := p.StartImport(context.Background(), importer, models.ImportOptions{}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, models.StageImport, p.Stage())
	assert.Same(t, result, p.Result())
}

func TestPipelineStartImportRejectsInvalidValidation(t *testing.T) {
	p, err := NewPipeline(models.DataTypePatients)
	require.NoError(t, err)

	table := patientTable()
	table.Rows = append(table.Rows, models.Row{"Nome": "", "Telefone": "", "Email": ""})
	table.TotalRows = 3
	require.NoError(t, p.AttachTable(table))

	result, err := p.RunValidation()
	require.NoError(t, err)
	require.False(t, result.IsValid)

	_, err = p.StartImport(context.Background(), NewImporter(newFakeStore()), models.ImportOptions{}, nil)
	assert.Error(t, err)
}

func TestPipelineMarkImporting(t *testing.T) {
	p, err := NewPipeline(models.DataTypePatients)
	require.NoError(t, err)
	require.NoError(t, p.AttachTable(patientTable()))

	_, err = p.RunValidation()
	require.NoError(t, err)
	require.Equal(t, models.StageValidation, p.Stage())

	// Queued background execution: the stage advances even though no import
	// runs in this process.
	p.MarkImporting()
	assert.Equal(t, models.StageImport, p.Stage())
}

func TestPipelineBack(t *testing.T) {
	p, err := NewPipeline(models.DataTypePatients)
	require.NoError(t, err)
	require.NoError(t, p.AttachTable(patientTable()))

	_, err = p.RunValidation()
	require.NoError(t, err)
	assert.Equal(t, models.StageValidation, p.Stage())

	stage, err := p.Back()
	require.NoError(t, err)
	assert.Equal(t, models.StageMapping, stage)

	stage, err = p.Back()
	require.NoError(t, err)
	assert.Equal(t, models.StagePreview, stage)

	stage, err = p.Back()
	require.NoError(t, err)
	assert.Equal(t, models.StageUpload, stage)

	_, err = p.Back()
	assert.Error(t, err)
}

func TestPipelineReset(t *testing.T) {
	p, err := NewPipeline(models.DataTypePatients)
	require.NoError(t, err)
	require.NoError(t, p.AttachTable(patientTable()))
	_, err = p.RunValidation()
	require.NoError(t, err)

	p.Reset()

	assert.Equal(t, models.StageUpload, p.Stage())
	assert.Nil(t, p.Table())
	assert.Empty(t, p.Mappings())
	assert.Nil(t, p.Validation())
	assert.Nil(t, p.Result())
}

func TestPipelineAttachTableRejectsEmpty(t *testing.T) {
	p, err := NewPipeline(models.DataTypePatients)
	require.NoError(t, err)

	assert.Error(t, p.AttachTable(nil))
	assert.Error(t, p.AttachTable(&models.ParsedTable{Headers: []string{"Nome"}}))
}

func TestPipelineRegistry(t *testing.T) {
	reg := NewPipelineRegistry()
	p, err := NewPipeline(models.DataTypePatients)
	require.NoError(t, err)

	reg.Register("IMP-1", p)
	got, err := reg.Get("IMP-1")
	require.NoError(t, err)
	assert.Same(t, p, got)

	reg.Remove("IMP-1")
	_, err = reg.Get("IMP-1")
	assert.Error(t, err)
}
