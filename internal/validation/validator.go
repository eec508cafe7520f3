package validation

import (
	"fmt"
	"sort"

	"github.com/sheetfed/federate/internal/models"
)

// ValidateConfig statically checks the structural invariants of a federation
// config: slug uniqueness, field presence, referential integrity of every
// source field reference, dedupe keys and filter fields resolving against the
// sheet's declared fields. It fails fast on the first violation.
//
// On success it returns the set of distinct source sheet slugs referenced
// anywhere in the config, which seeds the manager's mapping table.
func ValidateConfig(cfg models.FederationConfig) (map[string]struct{}, error) {
	v := &validator{
		allowUndeclared: cfg.AllowUndeclaredSourceFields,
		sourceSlugs:     make(map[string]struct{}),
	}

	if len(cfg.FederatedWorkbook.Sheets) == 0 {
		return nil, models.FederationConfigError{Msg: "[SheetValidator] federated workbook must have at least one sheet"}
	}

	seenSlugs := make(map[string]struct{}, len(cfg.FederatedWorkbook.Sheets))
	for _, sheet := range cfg.FederatedWorkbook.Sheets {
		if _, ok := seenSlugs[sheet.Slug]; ok {
			return nil, models.FederationConfigError{Msg: fmt.Sprintf("[SheetValidator] Duplicate sheet slug %q", sheet.Slug)}
		}
		seenSlugs[sheet.Slug] = struct{}{}

		if err := v.validateSheet(sheet); err != nil {
			return nil, err
		}
	}

	return v.sourceSlugs, nil
}

type validator struct {
	allowUndeclared bool
	sourceSlugs     map[string]struct{}
}

func (v *validator) validateSheet(sheet models.SheetSpec) error {
	if len(sheet.Fields) == 0 {
		return models.FederationConfigError{Msg: fmt.Sprintf("[SheetValidator] sheet %q must have at least one field", sheet.Slug)}
	}

	fieldKeys, err := v.validateFields(sheet)
	if err != nil {
		return err
	}

	if err := v.validateDedupe(sheet, fieldKeys); err != nil {
		return err
	}

	if sheet.IsUnpivot() {
		if err := v.validateUnpivotGroups(sheet, fieldKeys); err != nil {
			return err
		}
	}

	return v.validateFilters(sheet, fieldKeys)
}

// validateFields checks key uniqueness across real and virtual fields and the
// referential integrity of every federate config, returning the combined key
// set used by the dedupe, unpivot and filter checks.
func (v *validator) validateFields(sheet models.SheetSpec) (map[string]struct{}, error) {
	keys := make(map[string]struct{}, len(sheet.Fields)+len(sheet.VirtualFields))

	for _, field := range sheet.Fields {
		if _, ok := keys[field.Key]; ok {
			return nil, models.FederationConfigError{Msg: fmt.Sprintf("[FieldValidator] duplicate real field %q on sheet %q", field.Key, sheet.Slug)}
		}
		keys[field.Key] = struct{}{}

		if err := v.validateFederateConfig(sheet, field); err != nil {
			return nil, err
		}
	}

	virtualKeys := make(map[string]struct{}, len(sheet.VirtualFields))

	for _, field := range sheet.VirtualFields {
		if _, ok := virtualKeys[field.Key]; ok {
			return nil, models.FederationConfigError{Msg: fmt.Sprintf("[FieldValidator] duplicate virtual field %q on sheet %q", field.Key, sheet.Slug)}
		}
		if _, ok := keys[field.Key]; ok {
			return nil, models.FederationConfigError{Msg: fmt.Sprintf("[FieldValidator] virtual field %q on sheet %q is a collision with real field", field.Key, sheet.Slug)}
		}
		virtualKeys[field.Key] = struct{}{}
		keys[field.Key] = struct{}{}

		if err := v.validateFederateConfig(sheet, field); err != nil {
			return nil, err
		}
	}

	return keys, nil
}

func (v *validator) validateFederateConfig(sheet models.SheetSpec, field models.FieldSpec) error {
	fc := field.FederateConfig
	if fc == nil {
		return nil
	}

	if fc.SourceSheetSlug != "" && fc.SourceSheet != nil {
		return models.FederationConfigError{Msg: fmt.Sprintf("[FieldValidator] field %q on sheet %q cannot declare both source_sheet_slug and source_sheet", field.Key, sheet.Slug)}
	}

	hasSource := fc.ResolvedSlug() != ""

	if fc.SourceFieldKey != "" && !hasSource {
		return models.FederationConfigError{Msg: fmt.Sprintf("[FieldValidator] field %q on sheet %q has a source_field_key and must have a source_sheet_slug or source_sheet", field.Key, sheet.Slug)}
	}

	if hasSource && fc.SourceFieldKey == "" {
		return models.FederationConfigError{Msg: fmt.Sprintf("[FieldValidator] field %q on sheet %q has a source sheet and must have a source_field_key", field.Key, sheet.Slug)}
	}

	if !hasSource {
		return nil
	}

	// Slug-only references cannot be resolved without the live workbook and
	// are checked at mapping time; literal source sheets are checked here.
	if fc.SourceSheet != nil && !v.allowUndeclared {
		if !sourceSheetHasField(fc.SourceSheet, fc.SourceFieldKey) {
			return models.FederationConfigError{Msg: fmt.Sprintf("[FieldValidator] field %q on sheet %q references source field %q not declared on source sheet %q", field.Key, sheet.Slug, fc.SourceFieldKey, fc.SourceSheet.Slug)}
		}
	}

	v.sourceSlugs[fc.ResolvedSlug()] = struct{}{}

	return nil
}

func (v *validator) validateDedupe(sheet models.SheetSpec, fieldKeys map[string]struct{}) error {
	dc := sheet.DedupeConfig
	if dc == nil {
		return nil
	}

	if len(dc.On) == 0 {
		return models.FederationConfigError{Msg: fmt.Sprintf("[DedupeValidator] sheet %q dedupe config must have at least one merge field", sheet.Slug)}
	}

	switch dc.Type {
	case models.DedupeDelete, models.DedupeMerge:
	default:
		return models.FederationConfigError{Msg: fmt.Sprintf("[DedupeValidator] sheet %q has unsupported dedupe type %q; allowed: delete, merge", sheet.Slug, dc.Type)}
	}

	switch dc.Keep {
	case models.KeepFirst, models.KeepLast:
	default:
		return models.FederationConfigError{Msg: fmt.Sprintf("[DedupeValidator] sheet %q has unsupported dedupe keep %q; allowed: first, last", sheet.Slug, dc.Keep)}
	}

	for _, key := range dc.On {
		if _, ok := fieldKeys[key]; !ok {
			return models.FederationConfigError{Msg: fmt.Sprintf("[DedupeValidator] dedupe field %q does not exist on sheet %q", key, sheet.Slug)}
		}
	}

	return nil
}

func (v *validator) validateUnpivotGroups(sheet models.SheetSpec, fieldKeys map[string]struct{}) error {
	groupKeys := make([]string, 0, len(sheet.UnpivotGroups))
	for key := range sheet.UnpivotGroups {
		groupKeys = append(groupKeys, key)
	}
	sort.Strings(groupKeys)

	for _, groupKey := range groupKeys {
		group := sheet.UnpivotGroups[groupKey]

		if err := v.validateUnpivotGroup(sheet, groupKey, group, fieldKeys); err != nil {
			return err
		}

		v.sourceSlugs[group.ResolvedSlug()] = struct{}{}
	}

	return nil
}

func (v *validator) validateUnpivotGroup(sheet models.SheetSpec, groupKey string, group models.UnpivotGroup, fieldKeys map[string]struct{}) error {
	if group.SourceSheetSlug != "" && group.SourceSheet != nil {
		return models.FederationConfigError{Msg: fmt.Sprintf("[UnpivotValidator] group %q on sheet %q cannot declare both source_sheet_slug and source_sheet", groupKey, sheet.Slug)}
	}
	if group.ResolvedSlug() == "" {
		return models.FederationConfigError{Msg: fmt.Sprintf("[UnpivotValidator] group %q on sheet %q must have a source_sheet_slug or source_sheet", groupKey, sheet.Slug)}
	}

	nonEmpty := 0
	for _, rule := range group.FieldMappings {
		if len(rule) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return models.FederationConfigError{Msg: fmt.Sprintf("[UnpivotValidator] group %q on sheet %q must have at least one non-empty field mapping", groupKey, sheet.Slug)}
	}

	for _, rule := range group.FieldMappings {
		for targetKey, ruleValue := range rule {
			if _, ok := fieldKeys[targetKey]; !ok {
				return models.FederationConfigError{Msg: fmt.Sprintf("[UnpivotValidator] group %q on sheet %q maps to target field %q which does not exist on the sheet", groupKey, sheet.Slug, targetKey)}
			}

			if _, isLiteral := models.LiteralValue(ruleValue); isLiteral {
				continue
			}

			// Slug-only source references cannot be checked without the live
			// workbook; literal source sheets can.
			if group.SourceSheet != nil && !v.allowUndeclared {
				if !sourceSheetHasField(group.SourceSheet, ruleValue) {
					return models.FederationConfigError{Msg: fmt.Sprintf("[UnpivotValidator] group %q on sheet %q references source field %q not declared on source sheet %q", groupKey, sheet.Slug, ruleValue, group.SourceSheet.Slug)}
				}
			}
		}
	}

	return nil
}

func (v *validator) validateFilters(sheet models.SheetSpec, fieldKeys map[string]struct{}) error {
	checkList := func(kind string, fields []string) error {
		for _, key := range fields {
			if _, ok := fieldKeys[key]; !ok {
				return models.FederationConfigError{Msg: fmt.Sprintf("[FilterValidator] %s references field %q which does not exist on sheet %q", kind, key, sheet.Slug)}
			}
		}
		return nil
	}

	if err := checkList("all_fields_required", sheet.AllFieldsRequired); err != nil {
		return err
	}
	if err := checkList("any_fields_required", sheet.AnyFieldsRequired); err != nil {
		return err
	}
	if err := checkList("any_fields_excluded", sheet.AnyFieldsExcluded); err != nil {
		return err
	}

	checkMap := func(kind string, fields map[string][]string) error {
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		return checkList(kind, keys)
	}

	if err := checkMap("field_values_required", sheet.FieldValuesRequired); err != nil {
		return err
	}
	return checkMap("field_values_excluded", sheet.FieldValuesExcluded)
}

func sourceSheetHasField(sheet *models.SourceSheet, key string) bool {
	for _, f := range sheet.Fields {
		if f.Key == key {
			return true
		}
	}
	return false
}
