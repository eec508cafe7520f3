package merge

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/sheetfed/federate/internal/models"
)

// groupKeySeparator joins the parts of a composite dedupe key. Unit separator
// keeps "a"+"bc" distinct from "ab"+"c".
const groupKeySeparator = "\x1f"

// Records collapses records sharing the same stringified value(s) of the
// configured merge key(s). A nil config is the identity. Groups keep the
// position of their first member, so overall order is stable.
//
// For type "delete" the kept record is the group's first or last member per
// Keep. For type "merge" the kept record wins every field it has populated,
// and fields it lacks are unioned in from the other members in arrival order.
func Records(records []models.RowValues, cfg *models.DedupeConfig) []models.RowValues {
	if cfg == nil || len(cfg.On) == 0 {
		return records
	}

	var order []string
	groups := make(map[string][]models.RowValues)

	for _, record := range records {
		key := groupKey(record, cfg.On)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], record)
	}

	out := make([]models.RowValues, 0, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}

		switch cfg.Type {
		case models.DedupeMerge:
			out = append(out, mergeGroup(group, cfg.Keep))
		default:
			if cfg.Keep == models.KeepLast {
				out = append(out, group[len(group)-1])
			} else {
				out = append(out, group[0])
			}
		}
	}

	return out
}

func mergeGroup(group []models.RowValues, keep string) models.RowValues {
	kept := group[0]
	if keep == models.KeepLast {
		kept = group[len(group)-1]
	}

	result := kept.Clone()
	for _, member := range group {
		for key, cell := range member {
			if existing, ok := result[key]; ok && existing.Value != nil {
				continue
			}
			if cell.Value == nil {
				continue
			}
			result[key] = cell
		}
	}

	return result
}

func groupKey(record models.RowValues, on models.StringList) string {
	parts := make([]string, 0, len(on))
	for _, key := range on {
		cell, ok := record[key]
		if !ok || cell.Value == nil {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, cast.ToString(cell.Value))
	}
	return strings.Join(parts, groupKeySeparator)
}
