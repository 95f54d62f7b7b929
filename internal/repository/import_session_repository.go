package repository

import (
	"github.com/jmoiron/sqlx"

	"clinic-import/internal/models"
)

type ImportSessionRepository struct {
	db *sqlx.DB
}

func NewImportSessionRepository(db *sqlx.DB) *ImportSessionRepository {
	return &ImportSessionRepository{db: db}
}

func (r *ImportSessionRepository) Create(session *models.ImportSession) error {
	query := `INSERT INTO import_sessions (session_code, user_id, tenant_id, data_type, filename, file_path,
	          stage, status, total_rows, mappings_json)
	          VALUES (:session_code, :user_id, :tenant_id, :data_type, :filename, :file_path,
	          :stage, :status, :total_rows, :mappings_json)`
	result, err := r.db.NamedExec(query, session)
	if err != nil {
		return err
	}
	id, _ := result.LastInsertId()
	session.ID = int(id)
	return nil
}

func (r *ImportSessionRepository) GetByID(id int) (*models.ImportSession, error) {
	var session models.ImportSession
	query := "SELECT * FROM import_sessions WHERE id = ? LIMIT 1"
	if err := r.db.Get(&session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *ImportSessionRepository) GetByCode(code string) (*models.ImportSession, error) {
	var session models.ImportSession
	query := "SELECT * FROM import_sessions WHERE session_code = ? LIMIT 1"
	if err := r.db.Get(&session, query, code); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSessions lists sessions newest first. A zero userID returns sessions
// for every user (admin view).
func (r *ImportSessionRepository) GetSessions(limit, offset, userID int) ([]models.ImportSession, int, error) {
	sessions := []models.ImportSession{}
	var total int

	where := ""
	args := []interface{}{}
	if userID > 0 {
		where = "WHERE user_id = ?"
		args = append(args, userID)
	}

	countQuery := "SELECT COUNT(*) FROM import_sessions " + where
	if err := r.db.Get(&total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query := "SELECT * FROM import_sessions " + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	if err := r.db.Select(&sessions, query, args...); err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

func (r *ImportSessionRepository) Update(session *models.ImportSession) error {
	query := `UPDATE import_sessions SET stage = :stage, status = :status,
	          total_rows = :total_rows, imported_rows = :imported_rows, failed_rows = :failed_rows,
	          mappings_json = :mappings_json, error_message = :error_message
	          WHERE id = :id`
	_, err := r.db.NamedExec(query, session)
	return err
}

func (r *ImportSessionRepository) UpdateStage(id int, stage models.PipelineStage) error {
	query := "UPDATE import_sessions SET stage = ? WHERE id = ?"
	_, err := r.db.Exec(query, stage, id)
	return err
}

func (r *ImportSessionRepository) UpdateStatus(id int, status string) error {
	query := "UPDATE import_sessions SET status = ? WHERE id = ?"
	_, err := r.db.Exec(query, status, id)
	return err
}

func (r *ImportSessionRepository) UpdateMappings(id int, mappingsJSON string) error {
	query := "UPDATE import_sessions SET mappings_json = ? WHERE id = ?"
	_, err := r.db.Exec(query, mappingsJSON, id)
	return err
}
