package service

import (
	"context"
	"fmt"
	"sync"

	"clinic-import/internal/models"
)

const (
	// ImportBatchSize is the fixed number of rows applied per batch.
	ImportBatchSize = 50

	// importWorkers bounds concurrent row writes within a single batch.
	importWorkers = 5
)

// RecordStore is the target-store contract consumed by the importer. Both
// operations must be safe to retry at the row level.
type RecordStore interface {
	// FindEntityByIdentifier looks a referenced entity up by name, document
	// or phone and returns its ID, or "" when nothing matches.
	FindEntityByIdentifier(ctx context.Context, dataType models.TargetDataType, identifier string) (string, error)

	// WriteRecord inserts one record and returns its new ID.
	WriteRecord(ctx context.Context, dataType models.TargetDataType, fields map[string]string) (string, error)
}

// ProgressFunc receives an ImportProgress snapshot after every applied row.
type ProgressFunc func(progress models.ImportProgress)

// Importer applies validated rows against the record store in fixed-size
// batches. Batches run strictly in order; rows within a batch run on a
// bounded worker pool. A failed row never aborts its batch or the run.
type Importer struct {
	store RecordStore
}

func NewImporter(store RecordStore) *Importer {
	return &Importer{store: store}
}

// Import executes the run. Cancellation is honored at batch boundaries only,
// so at most one batch of extra work completes after ctx is canceled. The
// returned result is a terminal snapshot; partial success is a valid outcome,
// not an error.
func (im *Importer) Import(
	ctx context.Context,
	rows []models.Row,
	mappings []models.FieldMapping,
	dataType models.TargetDataType,
	opts models.ImportOptions,
	onProgress ProgressFunc,
) *models.ImportResult {
	total := len(rows)
	totalBatches := (total + ImportBatchSize - 1) / ImportBatchSize

	var mu sync.Mutex
	progress := models.ImportProgress{
		Total:        total,
		TotalBatches: totalBatches,
		Errors:       []models.RowError{},
	}
	var createdIDs []string

	for batch := 0; batch < totalBatches; batch++ {
		// Cancellation check between batches, never mid-batch.
		if ctx.Err() != nil {
			break
		}

		start := batch * ImportBatchSize
		end := start + ImportBatchSize
		if end > total {
			end = total
		}

		mu.Lock()
		progress.CurrentBatch = batch + 1
		mu.Unlock()

		var wg sync.WaitGroup
		sem := make(chan struct{}, importWorkers)

		for i := start; i < end; i++ {
			wg.Add(1)
			sem <- struct{}{}

			go func(rowIndex int) {
				defer wg.Done()
				defer func() { <-sem }()

				rowNum := rowIndex + 1
				id, err := im.applyRow(ctx, rows[rowIndex], mappings, dataType, opts)

				mu.Lock()
				progress.Processed++
				if err != nil {
					progress.Failed++
					progress.Errors = append(progress.Errors, models.RowError{Row: rowNum, Error: err.Error()})
				} else {
					progress.Successful++
					createdIDs = append(createdIDs, id)
				}
				if onProgress != nil {
					onProgress(snapshot(progress))
				}
				mu.Unlock()
			}(i)
		}

		wg.Wait()
	}

	return &models.ImportResult{
		Success:        progress.Failed == 0,
		TotalProcessed: progress.Processed,
		SuccessCount:   progress.Successful,
		FailedCount:    progress.Failed,
		Errors:         progress.Errors,
		CreatedIDs:     createdIDs,
	}
}

// applyRow transforms and writes a single row. For procedure rows it resolves
// the referenced patient first, auto-creating one when the options allow it.
func (im *Importer) applyRow(
	ctx context.Context,
	row models.Row,
	mappings []models.FieldMapping,
	dataType models.TargetDataType,
	opts models.ImportOptions,
) (string, error) {
	record := ApplyMappings(row, mappings, dataType)

	if dataType == models.DataTypeProcedures {
		patientID, err := im.resolvePatient(ctx, record, opts)
		if err != nil {
			return "", err
		}
		record["patient_id"] = patientID
	}

	id, err := im.store.WriteRecord(ctx, dataType, record)
	if err != nil {
		return "", fmt.Errorf("failed to write record: %w", err)
	}
	return id, nil
}

// resolvePatient finds the patient referenced by a procedure row, trying the
// patient name, document and phone in that order. When nothing matches and
// CreateMissingEntities is set, a minimal patient record is created; its ID
// is intentionally not reported in CreatedIDs.
func (im *Importer) resolvePatient(ctx context.Context, record map[string]string, opts models.ImportOptions) (string, error) {
	for _, key := range []string{"patient_name", "cpf", "phone"} {
		identifier := record[key]
		if identifier == "" {
			continue
		}
		id, err := im.store.FindEntityByIdentifier(ctx, models.DataTypePatients, identifier)
		if err != nil {
			return "", fmt.Errorf("patient lookup failed: %w", err)
		}
		if id != "" {
			return id, nil
		}
	}

	if !opts.CreateMissingEntities {
		return "", fmt.Errorf("no matching patient found for %q", record["patient_name"])
	}

	id, err := im.store.WriteRecord(ctx, models.DataTypePatients, map[string]string{
		"name": record["patient_name"],
	})
	if err != nil {
		return "", fmt.Errorf("failed to auto-create patient: %w", err)
	}
	return id, nil
}

// snapshot copies the progress so callbacks never observe later mutation.
func snapshot(p models.ImportProgress) models.ImportProgress {
	out := p
	out.Errors = make([]models.RowError, len(p.Errors))
	copy(out.Errors, p.Errors)
	return out
}
