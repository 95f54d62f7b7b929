package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-import/internal/models"
)

// fakeStore is an in-memory RecordStore with per-row failure injection.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int
	records  []map[string]string
	patients map[string]string // identifier -> id
	failOn   map[string]bool   // fail writes whose "description" or "name" matches
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		patients: make(map[string]string),
		failOn:   make(map[string]bool),
	}
}

func (s *fakeStore) FindEntityByIdentifier(ctx context.Context, dataType models.TargetDataType, identifier string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patients[identifier], nil
}

func (s *fakeStore) WriteRecord(ctx context.Context, dataType models.TargetDataType, fields map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failOn[fields["description"]] || s.failOn[fields["name"]] {
		return "", fmt.Errorf("write failed")
	}

	s.nextID++
	id := fmt.Sprintf("id-%d", s.nextID)
	s.records = append(s.records, fields)
	if dataType == models.DataTypePatients {
		s.patients[fields["name"]] = id
	}
	return id, nil
}

func transactionRows(n int) []models.Row {
	rows := make([]models.Row, n)
	for i := range rows {
		rows[i] = models.Row{
			"Descrição": fmt.Sprintf("tx %d", i+1),
			"Valor":     "100,00",
		}
	}
	return rows
}

func transactionMappings() []models.FieldMapping {
	return []models.FieldMapping{
		{SourceColumn: "Descrição", TargetField: "description"},
		{SourceColumn: "Valor", TargetField: "amount"},
	}
}

func TestImportPartialFailure(t *testing.T) {
	store := newFakeStore()
	store.failOn["tx 10"] = true
	store.failOn["tx 75"] = true

	rows := transactionRows(120)
	importer := NewImporter(store)

	var snapshots []models.ImportProgress
	result := importer.Import(context.Background(), rows, transactionMappings(),
		models.DataTypeTransactions, models.ImportOptions{}, func(p models.ImportProgress) {
			snapshots = append(snapshots, p)
		})

	assert.False(t, result.Success)
	assert.Equal(t, 120, result.TotalProcessed)
	assert.Equal(t, 118, result.SuccessCount)
	assert.Equal(t, 2, result.FailedCount)
	assert.Len(t, result.CreatedIDs, 118)

	failedRows := make(map[int]bool)
	for _, e := range result.Errors {
		failedRows[e.Row] = true
	}
	assert.True(t, failedRows[10])
	assert.True(t, failedRows[75])

	// 120 rows at 50 per batch is 3 batches.
	require.NotEmpty(t, snapshots)
	last := snapshots[len(snapshots)-1]
	assert.Equal(t, 3, last.TotalBatches)
	assert.Equal(t, 120, last.Processed)

	// Processed only increases across snapshots.
	prev := 0
	for _, s := range snapshots {
		assert.GreaterOrEqual(t, s.Processed, prev)
		prev = s.Processed
	}
	assert.Len(t, snapshots, 120)
}

func TestImportAllSucceed(t *testing.T) {
	store := newFakeStore()
	rows := transactionRows(7)

	result := NewImporter(store).Import(context.Background(), rows, transactionMappings(),
		models.DataTypeTransactions, models.ImportOptions{}, nil)

	assert.True(t, result.Success)
	assert.Equal(t, 7, result.SuccessCount)
	assert.Empty(t, result.Errors)
	assert.Len(t, store.records, 7)
}

func TestImportCancellationAtBatchBoundary(t *testing.T) {
	store := newFakeStore()
	rows := transactionRows(120)

	ctx, cancel := context.WithCancel(context.Background())
	canceledAfterFirstBatch := false

	result := NewImporter(store).Import(ctx, rows, transactionMappings(),
		models.DataTypeTransactions, models.ImportOptions{}, func(p models.ImportProgress) {
			if p.Processed == ImportBatchSize && !canceledAfterFirstBatch {
				canceledAfterFirstBatch = true
				cancel()
			}
		})

	// The batch in flight when cancel lands still completes; later batches
	// never start.
	assert.GreaterOrEqual(t, result.TotalProcessed, ImportBatchSize)
	assert.Less(t, result.TotalProcessed, 120)
	assert.Equal(t, 0, result.TotalProcessed%ImportBatchSize)
}

func TestImportProcedureResolvesPatient(t *testing.T) {
	store := newFakeStore()
	store.patients["Maria da Silva"] = "patient-1"

	rows := []models.Row{
		{"Paciente": "Maria da Silva", "Procedimento": "Limpeza", "Valor": "250,00"},
	}
	mappings := []models.FieldMapping{
		{SourceColumn: "Paciente", TargetField: "patient_name"},
		{SourceColumn: "Procedimento", TargetField: "name"},
		{SourceColumn: "Valor", TargetField: "value"},
	}

	result := NewImporter(store).Import(context.Background(), rows, mappings,
		models.DataTypeProcedures, models.ImportOptions{}, nil)

	require.True(t, result.Success)
	require.Len(t, store.records, 1)
	assert.Equal(t, "patient-1", store.records[0]["patient_id"])
}

func TestImportProcedureUnknownPatientFailsRow(t *testing.T) {
	store := newFakeStore()

	rows := []models.Row{
		{"Paciente": "Desconhecido", "Procedimento": "Limpeza"},
	}
	mappings := []models.FieldMapping{
		{SourceColumn: "Paciente", TargetField: "patient_name"},
		{SourceColumn: "Procedimento", TargetField: "name"},
	}

	result := NewImporter(store).Import(context.Background(), rows, mappings,
		models.DataTypeProcedures, models.ImportOptions{}, nil)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Row)
}

func TestImportProcedureCreatesMissingPatient(t *testing.T) {
	store := newFakeStore()

	rows := []models.Row{
		{"Paciente": "Nova Paciente", "Procedimento": "Avaliação"},
	}
	mappings := []models.FieldMapping{
		{SourceColumn: "Paciente", TargetField: "patient_name"},
		{SourceColumn: "Procedimento", TargetField: "name"},
	}

	result := NewImporter(store).Import(context.Background(), rows, mappings,
		models.DataTypeProcedures, models.ImportOptions{CreateMissingEntities: true}, nil)

	require.True(t, result.Success)
	// Patient plus procedure were written, but CreatedIDs reports only the
	// imported procedure.
	assert.Len(t, store.records, 2)
	assert.Len(t, result.CreatedIDs, 1)
}
