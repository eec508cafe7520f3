package filter

import (
	"slices"

	"github.com/spf13/cast"

	"github.com/sheetfed/federate/internal/models"
)

// ShouldInclude evaluates a sheet's declarative filter predicates against one
// record's values. Every configured predicate must pass; a nil or empty
// config includes everything.
func ShouldInclude(values models.RowValues, cfg *models.FilterConfig) bool {
	if !cfg.HasFilters() {
		return true
	}

	for _, key := range cfg.AllFieldsRequired {
		if _, ok := fieldValue(values, key); !ok {
			return false
		}
	}

	if len(cfg.AnyFieldsRequired) > 0 {
		found := false
		for _, key := range cfg.AnyFieldsRequired {
			if _, ok := fieldValue(values, key); ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	// Any present excluded field disqualifies the record.
	for _, key := range cfg.AnyFieldsExcluded {
		if _, ok := fieldValue(values, key); ok {
			return false
		}
	}

	for key, allowed := range cfg.FieldValuesRequired {
		value, ok := fieldValue(values, key)
		if !ok {
			return false
		}
		if !slices.Contains(allowed, cast.ToString(value)) {
			return false
		}
	}

	for key, disallowed := range cfg.FieldValuesExcluded {
		value, ok := fieldValue(values, key)
		if !ok {
			// Absent fields cannot match a disallowed value.
			continue
		}
		if slices.Contains(disallowed, cast.ToString(value)) {
			return false
		}
	}

	return true
}

// Apply filters a record list in place order, preserving relative order.
// A nil or empty config returns the input untouched.
func Apply(records []models.RowValues, cfg *models.FilterConfig) []models.RowValues {
	if !cfg.HasFilters() {
		return records
	}

	out := make([]models.RowValues, 0, len(records))
	for _, record := range records {
		if ShouldInclude(record, cfg) {
			out = append(out, record)
		}
	}

	return out
}

// fieldValue unwraps the platform's {value: ...} cell wrapper; a missing key
// or a null inner value both count as absent.
func fieldValue(values models.RowValues, key string) (any, bool) {
	cell, ok := values[key]
	if !ok || cell.Value == nil {
		return nil, false
	}
	return cell.Value, true
}
