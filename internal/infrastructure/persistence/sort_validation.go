package persistence

import (
	"strings"
)

// DocumentSortFields contains allowed sort fields for documents
var DocumentSortFields = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"document_date": true,
	"number":        true,
	"type":          true,
	"status":        true,
	"posted_at":     true,
}

// ValidateSortOrder normalizes a sort direction to ASC or DESC, defaulting to DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, otherwise defaultField.
// The result is interpolated into ORDER BY, so nothing outside the whitelist may pass.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}
