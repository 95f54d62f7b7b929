package service

import (
	"strings"

	"clinic-import/internal/models"
)

// FindMatchingField resolves a source column header to a target field key.
// An exact normalized match against the schema's own keys always wins; the
// synonym table is only consulted after that. Among synonyms the table order
// is the tie-break: the first field whose alias normalized-equals, is a
// substring of, or contains the normalized header wins. Returns "" when
// nothing matches.
func FindMatchingField(sourceColumn string, dataType models.TargetDataType) string {
	normalized := Normalize(sourceColumn)
	if normalized == "" {
		return ""
	}

	// Exact key match
	for _, f := range FieldSchemaFor(dataType) {
		if Normalize(f.Key) == normalized {
			return f.Key
		}
	}

	// Synonym match, first hit wins
	for _, entry := range synonymsFor(dataType) {
		for _, alias := range entry.Aliases {
			a := Normalize(alias)
			if a == normalized || strings.Contains(normalized, a) || strings.Contains(a, normalized) {
				return entry.Field
			}
		}
	}

	return ""
}

// AutoDetectMappings proposes one mapping per recognized header, in file
// order. A target field claimed by an earlier header is not claimed again,
// so the result has pairwise-distinct target fields. Unrecognized headers
// are dropped silently; missing required fields are the caller's concern,
// never an error here.
func AutoDetectMappings(headers []string, dataType models.TargetDataType) []models.FieldMapping {
	var mappings []models.FieldMapping
	claimed := make(map[string]bool)

	for _, header := range headers {
		field := FindMatchingField(header, dataType)
		if field == "" || claimed[field] {
			continue
		}
		claimed[field] = true
		mappings = append(mappings, models.FieldMapping{
			SourceColumn: header,
			TargetField:  field,
		})
	}

	return mappings
}

// UnmappedRequiredFields returns the required field keys of dataType that no
// mapping covers. An empty result means the manual mapping stage can be
// skipped.
func UnmappedRequiredFields(mappings []models.FieldMapping, dataType models.TargetDataType) []string {
	mapped := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		mapped[m.TargetField] = true
	}

	var missing []string
	for _, key := range RequiredFieldsFor(dataType) {
		if !mapped[key] {
			missing = append(missing, key)
		}
	}
	return missing
}

// MappingsValid reports whether every mapping's source column still exists
// in headers. A re-parse can orphan a manual mapping; orphaned mappings must
// force the manual mapping stage instead of validating against a dead column.
func MappingsValid(mappings []models.FieldMapping, headers []string) bool {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	for _, m := range mappings {
		if !known[m.SourceColumn] {
			return false
		}
	}
	return true
}

// upsertMapping inserts a mapping with replace semantics: any existing
// mapping for the same target field is removed first.
func upsertMapping(mappings []models.FieldMapping, m models.FieldMapping) []models.FieldMapping {
	out := removeMapping(mappings, m.TargetField)
	return append(out, m)
}

// removeMapping deletes the mapping for a target field, if present.
func removeMapping(mappings []models.FieldMapping, targetField string) []models.FieldMapping {
	out := mappings[:0:0]
	for _, existing := range mappings {
		if existing.TargetField != targetField {
			out = append(out, existing)
		}
	}
	return out
}
