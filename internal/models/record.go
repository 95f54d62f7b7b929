package models

import "time"

// Patient is a row in the patients table. Imported patients keep the session
// code of the run that created them.
type Patient struct {
	ID          string    `db:"id" json:"id"`
	TenantID    int       `db:"tenant_id" json:"tenant_id"`
	Name        string    `db:"name" json:"name"`
	Phone       string    `db:"phone" json:"phone"`
	Email       string    `db:"email" json:"email"`
	CPF         string    `db:"cpf" json:"cpf"`
	BirthDate   string    `db:"birth_date" json:"birth_date"`
	Address     string    `db:"address" json:"address"`
	City        string    `db:"city" json:"city"`
	Notes       string    `db:"notes" json:"notes"`
	SessionCode string    `db:"session_code" json:"session_code"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Procedure is a row in the procedures table.
type Procedure struct {
	ID          string    `db:"id" json:"id"`
	TenantID    int       `db:"tenant_id" json:"tenant_id"`
	PatientID   string    `db:"patient_id" json:"patient_id"`
	PatientName string    `db:"patient_name" json:"patient_name"`
	Name        string    `db:"name" json:"name"`
	Date        string    `db:"date" json:"date"`
	Value       float64   `db:"value" json:"value"`
	Status      string    `db:"status" json:"status"`
	Notes       string    `db:"notes" json:"notes"`
	SessionCode string    `db:"session_code" json:"session_code"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// FinancialTransaction is a row in the financial_transactions table.
type FinancialTransaction struct {
	ID          string    `db:"id" json:"id"`
	TenantID    int       `db:"tenant_id" json:"tenant_id"`
	Description string    `db:"description" json:"description"`
	Amount      float64   `db:"amount" json:"amount"`
	Date        string    `db:"date" json:"date"`
	Type        string    `db:"type" json:"type"`
	Category    string    `db:"category" json:"category"`
	SessionCode string    `db:"session_code" json:"session_code"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
