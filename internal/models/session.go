package models

import "time"

// Import session statuses.
const (
	SessionStatusUploaded   = "uploaded"
	SessionStatusValidating = "validating"
	SessionStatusReady      = "ready"
	SessionStatusImporting  = "importing"
	SessionStatusCompleted  = "completed"
	SessionStatusCanceled   = "canceled"
	SessionStatusFailed     = "failed"
)

// ImportSession is the persisted record of one wizard run.
type ImportSession struct {
	ID           int            `db:"id" json:"id"`
	SessionCode  string         `db:"session_code" json:"session_code"`
	UserID       int            `db:"user_id" json:"user_id"`
	TenantID     int            `db:"tenant_id" json:"tenant_id"`
	DataType     TargetDataType `db:"data_type" json:"data_type"`
	Filename     string         `db:"filename" json:"filename"`
	FilePath     string         `db:"file_path" json:"file_path"`
	Stage        PipelineStage  `db:"stage" json:"stage"`
	Status       string         `db:"status" json:"status"`
	TotalRows    int            `db:"total_rows" json:"total_rows"`
	ImportedRows int            `db:"imported_rows" json:"imported_rows"`
	FailedRows   int            `db:"failed_rows" json:"failed_rows"`
	MappingsJSON string         `db:"mappings_json" json:"-"`
	ErrorMessage string         `db:"error_message" json:"error_message"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}
