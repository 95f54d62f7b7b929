package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"clinic-import/internal/models"
)

// RecordRepository is the sqlx-backed target store the import executor
// writes against. Every insert gets a fresh UUID and carries the session
// code of the run that created it, so a manual retry of a failed row can
// never collide with an earlier write.
type RecordRepository struct {
	db          *sqlx.DB
	tenantID    int
	sessionCode string
}

func NewRecordRepository(db *sqlx.DB, tenantID int, sessionCode string) *RecordRepository {
	return &RecordRepository{
		db:          db,
		tenantID:    tenantID,
		sessionCode: sessionCode,
	}
}

// FindEntityByIdentifier looks a record up by its natural identifiers and
// returns its ID, or "" when nothing matches. Only patients are referenced
// by other imports today.
func (r *RecordRepository) FindEntityByIdentifier(ctx context.Context, dataType models.TargetDataType, identifier string) (string, error) {
	if dataType != models.DataTypePatients {
		return "", fmt.Errorf("lookup not supported for data type %s", dataType)
	}

	var id string
	query := `SELECT id FROM patients WHERE tenant_id = ? AND (name = ? OR cpf = ? OR phone = ?) LIMIT 1`
	err := r.db.GetContext(ctx, &id, query, r.tenantID, identifier, identifier, identifier)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// WriteRecord inserts one transformed record into the table for dataType and
// returns the new ID.
func (r *RecordRepository) WriteRecord(ctx context.Context, dataType models.TargetDataType, fields map[string]string) (string, error) {
	id := uuid.New().String()

	switch dataType {
	case models.DataTypePatients:
		query := `INSERT INTO patients (id, tenant_id, name, phone, email, cpf, birth_date, address, city, notes, session_code)
		          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := r.db.ExecContext(ctx, query, id, r.tenantID,
			fields["name"], fields["phone"], fields["email"], fields["cpf"],
			nullable(fields["birth_date"]), fields["address"], fields["city"], fields["notes"],
			r.sessionCode)
		if err != nil {
			return "", err
		}

	case models.DataTypeProcedures:
		status := fields["status"]
		if status == "" {
			status = "pending"
		}
		query := `INSERT INTO procedures (id, tenant_id, patient_id, patient_name, name, date, value, status, notes, session_code)
		          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := r.db.ExecContext(ctx, query, id, r.tenantID,
			fields["patient_id"], fields["patient_name"], fields["name"],
			nullable(fields["date"]), fields["value"], status, fields["notes"],
			r.sessionCode)
		if err != nil {
			return "", err
		}

	case models.DataTypeTransactions:
		txType := fields["type"]
		if txType == "" {
			txType = "income"
		}
		query := `INSERT INTO financial_transactions (id, tenant_id, description, amount, date, type, category, session_code)
		          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := r.db.ExecContext(ctx, query, id, r.tenantID,
			fields["description"], fields["amount"], nullable(fields["date"]),
			txType, fields["category"], r.sessionCode)
		if err != nil {
			return "", err
		}

	default:
		return "", fmt.Errorf("unsupported data type: %s", dataType)
	}

	return id, nil
}

// nullable maps an empty transformed value to SQL NULL so date columns do
// not receive zero strings.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
