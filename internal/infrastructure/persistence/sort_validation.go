package persistence

import (
	"strings"

	"github.com/fieldops/stockledger/internal/domain/shared"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// sortClause builds an ORDER BY clause from a whitelisted field.
// When the filter names no allowed field, fallback is returned unchanged.
func sortClause(filter shared.Filter, allowedFields map[string]bool, fallback string) string {
	field := ValidateSortField(filter.OrderBy, allowedFields, "")
	if field == "" {
		return fallback
	}
	return field + " " + ValidateSortOrder(filter.OrderDir)
}

// ItemSortFields contains allowed sort fields for items
var ItemSortFields = map[string]bool{
	"code":       true,
	"name":       true,
	"unit":       true,
	"cost_price": true,
	"created_at": true,
	"updated_at": true,
}

// StoreSortFields contains allowed sort fields for stores
var StoreSortFields = map[string]bool{
	"code":       true,
	"name":       true,
	"kind":       true,
	"created_at": true,
	"updated_at": true,
}

// ContractorSortFields contains allowed sort fields for contractors
var ContractorSortFields = map[string]bool{
	"code":       true,
	"name":       true,
	"active":     true,
	"created_at": true,
	"updated_at": true,
}

// StockRequestSortFields contains allowed sort fields for stock requests
var StockRequestSortFields = map[string]bool{
	"number":         true,
	"status":         true,
	"workflow_stage": true,
	"source_type":    true,
	"created_at":     true,
	"updated_at":     true,
}
