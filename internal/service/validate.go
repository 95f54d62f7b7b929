package service

import (
	"fmt"
	"strconv"
	"strings"

	"clinic-import/internal/models"
)

// Validate applies the target schema to every row and collects the complete
// issue list; it never stops at the first failure so callers can present a
// full report. Row numbers are 1-based data-row indexes. The function is
// pure: input rows are never mutated and identical inputs yield identical
// results.
func Validate(rows []models.Row, mappings []models.FieldMapping, dataType models.TargetDataType) models.ValidationResult {
	result := models.ValidationResult{
		Errors:   []models.ValidationIssue{},
		Warnings: []models.ValidationIssue{},
	}

	schema := FieldSchemaFor(dataType)

	for i, row := range rows {
		rowNum := i + 1
		record := ApplyMappings(row, mappings, dataType)
		rowHadError := false

		// Required fields must be non-empty after transformation.
		for _, field := range schema {
			if !field.Required {
				continue
			}
			if record[field.Key] == "" {
				result.Errors = append(result.Errors, models.ValidationIssue{
					Row:      rowNum,
					Field:    field.Key,
					Value:    record[field.Key],
					Message:  "missing required field",
					Severity: models.SeverityError,
				})
				rowHadError = true
			}
		}

		// Kind-specific shape checks per mapped field. These are warnings
		// unless the schema marks the field required.
		for _, m := range mappings {
			field, ok := fieldByKey(dataType, m.TargetField)
			if !ok {
				continue
			}
			raw := strings.TrimSpace(row[m.SourceColumn])
			if raw == "" {
				continue
			}

			if msg := shapeIssue(field, record[field.Key]); msg != "" {
				issue := models.ValidationIssue{
					Row:      rowNum,
					Field:    field.Key,
					Value:    raw,
					Message:  msg,
					Severity: models.SeverityWarning,
				}
				if field.Required {
					issue.Severity = models.SeverityError
					result.Errors = append(result.Errors, issue)
					rowHadError = true
				} else {
					result.Warnings = append(result.Warnings, issue)
				}
			}
		}

		if rowHadError {
			result.InvalidRowCount++
		} else {
			result.ValidRowCount++
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// shapeIssue checks one transformed value against its field kind and returns
// a message when the shape is off, or "" when the value is acceptable.
func shapeIssue(field models.MappableField, transformed string) string {
	switch field.Kind {
	case models.KindDate:
		if transformed == "" {
			return "unrecognized date format"
		}
	case models.KindNumber:
		amount, err := strconv.ParseFloat(transformed, 64)
		if err != nil || amount <= 0 {
			return "amount must be a positive number"
		}
	case models.KindEmail:
		if !strings.Contains(transformed, "@") || strings.HasPrefix(transformed, "@") || strings.HasSuffix(transformed, "@") {
			return "invalid email address"
		}
	case models.KindPhone:
		if len(transformed) < 10 {
			return fmt.Sprintf("phone number has %d digits, expected at least 10", len(transformed))
		}
	case models.KindNationalID:
		if len(transformed) != cpfDigits {
			return fmt.Sprintf("CPF has %d digits, expected %d", len(transformed), cpfDigits)
		}
	}
	return ""
}
