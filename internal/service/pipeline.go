package service

import (
	"context"
	"fmt"
	"sync"

	"clinic-import/internal/models"
)

// Pipeline owns the state of one import wizard run: the active data type,
// the parsed table, the mapping set, the latest validation result and the
// import outcome. Stages advance along the fixed linear order
// upload → preview → mapping → validation → import, with backward
// navigation one stage at a time. A pipeline is single-flight: only one
// validation or import may be pending at a time.
type Pipeline struct {
	mu sync.Mutex

	dataType   models.TargetDataType
	table      *models.ParsedTable
	mappings   []models.FieldMapping
	validation *models.ValidationResult
	result     *models.ImportResult
	stage      models.PipelineStage
	busy       bool
}

// NewPipeline creates an empty pipeline at the upload stage.
func NewPipeline(dataType models.TargetDataType) (*Pipeline, error) {
	if !dataType.IsValid() {
		return nil, fmt.Errorf("unsupported data type: %s", dataType)
	}
	return &Pipeline{
		dataType: dataType,
		stage:    models.StageUpload,
	}, nil
}

// Stage returns the current wizard stage.
func (p *Pipeline) Stage() models.PipelineStage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

// DataType returns the active import target.
func (p *Pipeline) DataType() models.TargetDataType {
	return p.dataType
}

// Table returns the active parsed table, or nil before a successful parse.
func (p *Pipeline) Table() *models.ParsedTable {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.table
}

// Mappings returns a copy of the current mapping set.
func (p *Pipeline) Mappings() []models.FieldMapping {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.FieldMapping, len(p.mappings))
	copy(out, p.mappings)
	return out
}

// Validation returns the latest validation result, or nil when none is held
// (never run, or invalidated by a mapping edit).
func (p *Pipeline) Validation() *models.ValidationResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.validation
}

// Result returns the terminal import result, or nil while none exists.
func (p *Pipeline) Result() *models.ImportResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// AttachTable installs a freshly parsed table and moves to the preview
// stage. Re-attaching replaces the table; mappings are re-detected from
// scratch and any held validation result is discarded.
func (p *Pipeline) AttachTable(table *models.ParsedTable) error {
	if table == nil || table.TotalRows == 0 {
		return fmt.Errorf("parsed table is empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return fmt.Errorf("another operation is in flight")
	}

	p.table = table
	p.mappings = AutoDetectMappings(table.Headers, p.dataType)
	p.validation = nil
	p.result = nil
	p.stage = models.StagePreview
	return nil
}

// ProceedFromPreview advances past the preview stage. When every required
// field is mapped and every mapping still points at an existing column, the
// manual mapping stage is bypassed and validation runs immediately; otherwise
// the wizard stops at the mapping stage for manual edits.
func (p *Pipeline) ProceedFromPreview() (models.PipelineStage, error) {
	p.mu.Lock()
	if p.stage != models.StagePreview {
		p.mu.Unlock()
		return p.stage, fmt.Errorf("cannot proceed: pipeline is at stage %s, not %s", p.stage, models.StagePreview)
	}

	missing := UnmappedRequiredFields(p.mappings, p.dataType)
	if len(missing) > 0 || !MappingsValid(p.mappings, p.table.Headers) {
		p.stage = models.StageMapping
		stage := p.stage
		p.mu.Unlock()
		return stage, nil
	}
	p.mu.Unlock()

	if _, err := p.RunValidation(); err != nil {
		return p.Stage(), err
	}
	return p.Stage(), nil
}

// AddMapping assigns a source column to a target field with replace
// semantics: an existing mapping for the same target field is removed first.
// Any held validation result is invalidated; callers must re-run validation
// before importing.
func (p *Pipeline) AddMapping(sourceColumn, targetField string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.table == nil {
		return fmt.Errorf("no file has been parsed yet")
	}
	if _, ok := fieldByKey(p.dataType, targetField); !ok {
		return fmt.Errorf("unknown target field: %s", targetField)
	}
	if !MappingsValid([]models.FieldMapping{{SourceColumn: sourceColumn}}, p.table.Headers) {
		return fmt.Errorf("source column %q does not exist in the uploaded file", sourceColumn)
	}

	p.mappings = upsertMapping(p.mappings, models.FieldMapping{
		SourceColumn: sourceColumn,
		TargetField:  targetField,
	})
	p.invalidateValidationLocked()
	return nil
}

// RemoveMapping deletes the mapping for a target field and invalidates any
// held validation result.
func (p *Pipeline) RemoveMapping(targetField string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.table == nil {
		return fmt.Errorf("no file has been parsed yet")
	}
	p.mappings = removeMapping(p.mappings, targetField)
	p.invalidateValidationLocked()
	return nil
}

// Redetect recomputes the mapping set from scratch, discarding every manual
// edit. Callers should warn the user before invoking it.
func (p *Pipeline) Redetect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.table == nil {
		return fmt.Errorf("no file has been parsed yet")
	}
	p.mappings = AutoDetectMappings(p.table.Headers, p.dataType)
	p.invalidateValidationLocked()
	return nil
}

// RunValidation validates every row against the schema and stores the
// result, landing the wizard on the validation stage. It is re-runnable; a
// fresh result replaces the previous one.
func (p *Pipeline) RunValidation() (*models.ValidationResult, error) {
	p.mu.Lock()
	if p.table == nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("no file has been parsed yet")
	}
	if p.stage == models.StageUpload {
		p.mu.Unlock()
		return nil, fmt.Errorf("cannot validate before previewing the parsed file")
	}
	if p.busy {
		p.mu.Unlock()
		return nil, fmt.Errorf("another operation is in flight")
	}
	p.busy = true
	rows := p.table.Rows
	mappings := make([]models.FieldMapping, len(p.mappings))
	copy(mappings, p.mappings)
	p.mu.Unlock()

	result := Validate(rows, mappings, p.dataType)

	p.mu.Lock()
	p.validation = &result
	p.stage = models.StageValidation
	p.busy = false
	p.mu.Unlock()

	return &result, nil
}

// StartImport executes the import run. It is user-triggered only and rejects
// synchronously, before any I/O, when its preconditions do not hold: a
// current validation result must exist and must carry zero errors. The call
// blocks until the run finishes or ctx is canceled at a batch boundary.
func (p *Pipeline) StartImport(ctx context.Context, importer *Importer, opts models.ImportOptions, onProgress ProgressFunc) (*models.ImportResult, error) {
	p.mu.Lock()
	if p.table == nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("no file has been parsed yet")
	}
	if p.validation == nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("validation has not been run for the current mappings")
	}
	if !p.validation.IsValid {
		p.mu.Unlock()
		return nil, fmt.Errorf("validation reported %d errors; fix them before importing", len(p.validation.Errors))
	}
	if missing := UnmappedRequiredFields(p.mappings, p.dataType); len(missing) > 0 {
		p.mu.Unlock()
		return nil, fmt.Errorf("required fields are not mapped: %v", missing)
	}
	if p.busy {
		p.mu.Unlock()
		return nil, fmt.Errorf("an import is already in flight")
	}
	p.busy = true
	p.stage = models.StageImport
	rows := p.table.Rows
	mappings := make([]models.FieldMapping, len(p.mappings))
	copy(mappings, p.mappings)
	p.mu.Unlock()

	result := importer.Import(ctx, rows, mappings, p.dataType, opts, onProgress)

	p.mu.Lock()
	p.result = result
	p.busy = false
	p.mu.Unlock()

	return result, nil
}

// MarkImporting moves the wizard to the import stage without running an
// import in-process. Used when execution happens in a separate worker and
// the run was already precondition-checked; detail views then report the
// stage consistently while the worker owns the rows.
func (p *Pipeline) MarkImporting() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = models.StageImport
}

// Back navigates one stage backward along the linear order. Skipping
// backward stages is not allowed; going back from upload is an error.
func (p *Pipeline) Back() (models.PipelineStage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.busy {
		return p.stage, fmt.Errorf("another operation is in flight")
	}
	idx := models.StageIndex(p.stage)
	if idx <= 0 {
		return p.stage, fmt.Errorf("already at the first stage")
	}
	p.stage = []models.PipelineStage{
		models.StageUpload, models.StagePreview, models.StageMapping,
		models.StageValidation, models.StageImport,
	}[idx-1]
	return p.stage, nil
}

// Reset returns the pipeline to its initial empty state.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.table = nil
	p.mappings = nil
	p.validation = nil
	p.result = nil
	p.stage = models.StageUpload
	p.busy = false
}

// invalidateValidationLocked discards a held validation result after a
// mapping edit. The controller never auto-revalidates.
func (p *Pipeline) invalidateValidationLocked() {
	p.validation = nil
	if p.stage == models.StageValidation {
		p.stage = models.StageMapping
	}
}
