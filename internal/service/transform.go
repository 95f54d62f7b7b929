package service

import (
	"strconv"
	"strings"
	"time"

	"clinic-import/internal/models"
)

const (
	// Brazilian numbers carry at most 11 digits (2-digit area code + 9).
	phoneMaxDigits = 11
	phoneCountryCode = "55"

	// CPF is always 11 digits.
	cpfDigits = 11
)

// TransformPhone keeps only digits, drops a leading country-code prefix when
// the remainder still exceeds the local ceiling, and truncates to the local
// maximum. Total over arbitrary input.
func TransformPhone(value string) string {
	digits := keepDigits(value)
	if len(digits) > phoneMaxDigits && strings.HasPrefix(digits, phoneCountryCode) {
		digits = digits[len(phoneCountryCode):]
	}
	if len(digits) > phoneMaxDigits {
		digits = digits[:phoneMaxDigits]
	}
	return digits
}

// TransformCPF keeps only digits and truncates to the fixed CPF length.
func TransformCPF(value string) string {
	digits := keepDigits(value)
	if len(digits) > cpfDigits {
		digits = digits[:cpfDigits]
	}
	return digits
}

// Explicit day-first and year-first patterns, tried in order for each of the
// three common delimiters. time.Parse rejects impossible calendar dates
// (e.g. day 31 in a 30-day month), which is exactly the check we want.
var dateFormats = []string{
	"02/01/2006", // DD/MM/YYYY
	"2006/01/02", // YYYY/MM/DD
	"02-01-2006", // DD-MM-YYYY
	"2006-01-02", // YYYY-MM-DD
	"02.01.2006", // DD.MM.YYYY
	"2006.01.02", // YYYY.MM.DD
}

// Looser fallbacks, matching what spreadsheets tend to emit.
var fallbackDateFormats = []string{
	"02/01/06",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"Jan 02, 2006",
	"02 Jan 2006",
	time.RFC3339,
}

// TransformDate coerces a raw cell into canonical YYYY-MM-DD, or empty string
// when no pattern matches. Day-first orders are tried before year-first ones.
func TransformDate(value string) string {
	s := strings.TrimSpace(value)
	if s == "" {
		return ""
	}

	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	for _, format := range fallbackDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.Format("2006-01-02")
		}
	}

	return ""
}

// TransformMoney strips currency symbols and whitespace and parses a float.
// A comma is treated as the decimal separator, with any dots taken as
// thousands separators, matching pt-BR monetary notation ("1.234,56").
// Returns 0 on failure; range checks belong to validation, not here.
func TransformMoney(value string) float64 {
	s := strings.TrimSpace(value)
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || s == "-" {
		return 0
	}

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	result, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return result
}

// Procedure status values accepted from imports, keyed by normalized input.
var statusTable = map[string]string{
	"pendente":   "pending",
	"pending":    "pending",
	"concluido":  "completed",
	"finalizado": "completed",
	"completed":  "completed",
	"cancelado":  "cancelled",
	"cancelled":  "cancelled",
	"canceled":   "cancelled",
	"agendado":   "scheduled",
	"scheduled":  "scheduled",
}

const defaultStatus = "pending"

// TransformStatus maps a free-form status cell onto the fixed procedure
// status enum. Unknown values fall back to the default instead of failing.
func TransformStatus(value string) string {
	if mapped, ok := statusTable[Normalize(value)]; ok {
		return mapped
	}
	return defaultStatus
}

// Transaction type values accepted from imports.
var typeTable = map[string]string{
	"entrada": "income",
	"receita": "income",
	"credito": "income",
	"income":  "income",
	"saida":   "expense",
	"despesa": "expense",
	"debito":  "expense",
	"expense": "expense",
}

const defaultType = "income"

// TransformType maps a free-form type cell onto the transaction type enum,
// falling back to the default for unknown values.
func TransformType(value string) string {
	if mapped, ok := typeTable[Normalize(value)]; ok {
		return mapped
	}
	return defaultType
}

// TransformValue coerces a raw cell for a target field according to the
// field's declared kind. Two dataType-specific exceptions apply: the status
// enum only for procedure rows and the type enum only for transaction rows.
func TransformValue(value, targetField string, dataType models.TargetDataType) string {
	if targetField == "status" && dataType == models.DataTypeProcedures {
		return TransformStatus(value)
	}
	if targetField == "type" && dataType == models.DataTypeTransactions {
		return TransformType(value)
	}

	field, ok := fieldByKey(dataType, targetField)
	if !ok {
		return strings.TrimSpace(value)
	}

	switch field.Kind {
	case models.KindPhone:
		return TransformPhone(value)
	case models.KindNationalID:
		return TransformCPF(value)
	case models.KindDate:
		return TransformDate(value)
	case models.KindNumber:
		if strings.TrimSpace(value) == "" {
			return ""
		}
		return strconv.FormatFloat(TransformMoney(value), 'f', -1, 64)
	case models.KindEmail:
		return strings.ToLower(strings.TrimSpace(value))
	default:
		return strings.TrimSpace(value)
	}
}

// ApplyMappings builds the full transformed record for one row by running
// TransformValue over every mapped column. A mapping's own Transform
// override, when present, takes precedence over the kind-based coercion.
func ApplyMappings(row models.Row, mappings []models.FieldMapping, dataType models.TargetDataType) map[string]string {
	record := make(map[string]string, len(mappings))
	for _, m := range mappings {
		raw := row[m.SourceColumn]
		if m.Transform != nil {
			record[m.TargetField] = m.Transform(raw)
			continue
		}
		record[m.TargetField] = TransformValue(raw, m.TargetField, dataType)
	}
	return record
}

func keepDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
