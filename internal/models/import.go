package models

// TargetDataType identifies which record table an import run targets.
type TargetDataType string

const (
	DataTypePatients     TargetDataType = "patients"
	DataTypeProcedures   TargetDataType = "procedures"
	DataTypeTransactions TargetDataType = "transactions"
)

// IsValid reports whether t is one of the supported import targets.
func (t TargetDataType) IsValid() bool {
	switch t {
	case DataTypePatients, DataTypeProcedures, DataTypeTransactions:
		return true
	}
	return false
}

// FieldKind is the declared value kind of a mappable field. It selects the
// transform applied to raw cells and the shape checks run during validation.
type FieldKind string

const (
	KindString     FieldKind = "string"
	KindNumber     FieldKind = "number"
	KindDate       FieldKind = "date"
	KindEmail      FieldKind = "email"
	KindPhone      FieldKind = "phone"
	KindNationalID FieldKind = "nationalId"
)

// MappableField describes one target schema field an import column can map to.
type MappableField struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Required bool      `json:"required"`
	Kind     FieldKind `json:"kind"`
}

// Row is one parsed line keyed by header string. Cell values are the raw
// strings produced by the file parser.
type Row map[string]string

// ParsedTable is the normalized output of the file parser. It is created once
// per uploaded file and never mutated; re-parsing produces a new table.
type ParsedTable struct {
	Headers   []string `json:"headers"`
	Rows      []Row    `json:"rows"`
	TotalRows int      `json:"total_rows"`
}

// TransformFunc is an optional caller-supplied override applied after the
// kind-based transform for a mapping.
type TransformFunc func(value string) string

// FieldMapping assigns one source column to one target schema field.
type FieldMapping struct {
	SourceColumn string        `json:"source_column"`
	TargetField  string        `json:"target_field"`
	Transform    TransformFunc `json:"-"`
}

// IssueSeverity classifies a validation issue as blocking or advisory.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// ValidationIssue is one problem found in one cell of one row.
type ValidationIssue struct {
	Row      int           `json:"row"`
	Field    string        `json:"field"`
	Value    string        `json:"value"`
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
}

// ValidationResult is the full outcome of one validation run. IsValid holds
// iff Errors is empty; warnings never block progression.
type ValidationResult struct {
	IsValid         bool              `json:"is_valid"`
	Errors          []ValidationIssue `json:"errors"`
	Warnings        []ValidationIssue `json:"warnings"`
	ValidRowCount   int               `json:"valid_row_count"`
	InvalidRowCount int               `json:"invalid_row_count"`
}

// RowError records a single failed row during import execution.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportProgress is the live state of a running import. Processed only
// increases; a snapshot is emitted after every row.
type ImportProgress struct {
	Total        int        `json:"total"`
	Processed    int        `json:"processed"`
	Successful   int        `json:"successful"`
	Failed       int        `json:"failed"`
	CurrentBatch int        `json:"current_batch"`
	TotalBatches int        `json:"total_batches"`
	Errors       []RowError `json:"errors"`
}

// ImportResult is the immutable terminal snapshot of an import run. Success
// is true iff no row failed; partial success is a valid terminal state.
type ImportResult struct {
	Success        bool       `json:"success"`
	TotalProcessed int        `json:"total_processed"`
	SuccessCount   int        `json:"success_count"`
	FailedCount    int        `json:"failed_count"`
	Errors         []RowError `json:"errors"`
	CreatedIDs     []string   `json:"created_ids"`
}

// ImportOptions tunes a single import run.
type ImportOptions struct {
	// CreateMissingEntities auto-creates a referenced patient record when no
	// existing one matches by name, document or phone, instead of failing
	// the row.
	CreateMissingEntities bool `json:"create_missing_entities"`
}

// PipelineStage is one step of the import wizard.
type PipelineStage string

const (
	StageUpload     PipelineStage = "upload"
	StagePreview    PipelineStage = "preview"
	StageMapping    PipelineStage = "mapping"
	StageValidation PipelineStage = "validation"
	StageImport     PipelineStage = "import"
)

// stageOrder fixes the linear wizard progression.
var stageOrder = []PipelineStage{StageUpload, StagePreview, StageMapping, StageValidation, StageImport}

// StageIndex returns the position of s in the wizard order, or -1.
func StageIndex(s PipelineStage) int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}
