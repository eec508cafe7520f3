package models

import (
	"encoding/json"
	"fmt"
)

const (
	DedupeDelete = "delete"
	DedupeMerge  = "merge"

	KeepFirst = "first"
	KeepLast  = "last"
)

type FederationConfigError struct {
	Msg string
}

func (e FederationConfigError) Error() string {
	return "invalid federation config: " + e.Msg
}

// FederationConfig is the declarative description of one federation run:
// which source workbook to read and how its sheets project into the
// federated workbook. It is immutable after construction.
type FederationConfig struct {
	SourceWorkbookName string       `json:"source_workbook_name"`
	FederatedWorkbook  WorkbookSpec `json:"federated_workbook"`

	// AllowUndeclaredSourceFields disables the check that every referenced
	// source field key exists in the declared source sheet fields.
	AllowUndeclaredSourceFields bool `json:"allow_undeclared_source_fields"`
	Debug                       bool `json:"debug"`
}

type WorkbookSpec struct {
	Name   string      `json:"name"`
	Sheets []SheetSpec `json:"sheets"`
}

// SheetSpec defines one target sheet. A sheet with a non-empty UnpivotGroups
// map is an unpivot sheet; otherwise it is a standard field-remapping sheet.
type SheetSpec struct {
	Name string `json:"name"`
	Slug string `json:"slug"`

	Fields        []FieldSpec `json:"fields"`
	VirtualFields []FieldSpec `json:"virtual_fields,omitempty"`

	UnpivotGroups map[string]UnpivotGroup `json:"unpivot_groups,omitempty"`

	DedupeConfig *DedupeConfig `json:"dedupe_config,omitempty"`

	AllFieldsRequired   []string            `json:"all_fields_required,omitempty"`
	AnyFieldsRequired   []string            `json:"any_fields_required,omitempty"`
	AnyFieldsExcluded   []string            `json:"any_fields_excluded,omitempty"`
	FieldValuesRequired map[string][]string `json:"field_values_required,omitempty"`
	FieldValuesExcluded map[string][]string `json:"field_values_excluded,omitempty"`
}

func (s SheetSpec) IsUnpivot() bool {
	return len(s.UnpivotGroups) > 0
}

// Filter returns the sheet's filter predicates, or nil when no filter
// field is set so callers get a fast path for unfiltered sheets.
func (s SheetSpec) Filter() *FilterConfig {
	f := FilterConfig{
		AllFieldsRequired:   s.AllFieldsRequired,
		AnyFieldsRequired:   s.AnyFieldsRequired,
		AnyFieldsExcluded:   s.AnyFieldsExcluded,
		FieldValuesRequired: s.FieldValuesRequired,
		FieldValuesExcluded: s.FieldValuesExcluded,
	}
	if !f.HasFilters() {
		return nil
	}
	return &f
}

type FieldSpec struct {
	Key  string `json:"key"`
	Type string `json:"type,omitempty"`

	FederateConfig *FederateConfig `json:"federate_config,omitempty"`
}

// FederateConfig ties a target field to its source. Exactly one of
// SourceSheetSlug / SourceSheet must be set alongside SourceFieldKey.
type FederateConfig struct {
	SourceSheetSlug string       `json:"source_sheet_slug,omitempty"`
	SourceSheet     *SourceSheet `json:"source_sheet,omitempty"`
	SourceFieldKey  string       `json:"source_field_key,omitempty"`
}

// ResolvedSlug returns the source sheet slug regardless of which of the two
// reference forms the config used. Empty when neither is set.
func (fc *FederateConfig) ResolvedSlug() string {
	if fc == nil {
		return ""
	}
	if fc.SourceSheetSlug != "" {
		return fc.SourceSheetSlug
	}
	if fc.SourceSheet != nil {
		return fc.SourceSheet.Slug
	}
	return ""
}

// SourceSheet is a literal declaration of a source sheet, carried inline in
// the config so source field references can be checked without the platform.
type SourceSheet struct {
	Name   string       `json:"name,omitempty"`
	Slug   string       `json:"slug"`
	Fields []SheetField `json:"fields,omitempty"`
}

// UnpivotGroup turns one source row into several target rows: each entry in
// FieldMappings produces one row, mapping target columns to either a source
// field key or a literal wrapped in <<...>>.
type UnpivotGroup struct {
	SourceSheetSlug string            `json:"source_sheet_slug,omitempty"`
	SourceSheet     *SourceSheet      `json:"source_sheet,omitempty"`
	FieldMappings   []map[string]string `json:"field_mappings"`
}

// ResolvedSlug mirrors FederateConfig.ResolvedSlug for unpivot groups.
func (g UnpivotGroup) ResolvedSlug() string {
	if g.SourceSheetSlug != "" {
		return g.SourceSheetSlug
	}
	if g.SourceSheet != nil {
		return g.SourceSheet.Slug
	}
	return ""
}

// DedupeConfig collapses records sharing the same value(s) of On.
type DedupeConfig struct {
	On   StringList `json:"on"`
	Type string     `json:"type"`
	Keep string     `json:"keep"`
}

// FilterConfig is the set of declarative inclusion/exclusion predicates for
// one target sheet. Field names reference target (real or virtual) fields.
type FilterConfig struct {
	AllFieldsRequired   []string            `json:"all_fields_required,omitempty"`
	AnyFieldsRequired   []string            `json:"any_fields_required,omitempty"`
	AnyFieldsExcluded   []string            `json:"any_fields_excluded,omitempty"`
	FieldValuesRequired map[string][]string `json:"field_values_required,omitempty"`
	FieldValuesExcluded map[string][]string `json:"field_values_excluded,omitempty"`
}

func (f *FilterConfig) HasFilters() bool {
	if f == nil {
		return false
	}
	return len(f.AllFieldsRequired) > 0 ||
		len(f.AnyFieldsRequired) > 0 ||
		len(f.AnyFieldsExcluded) > 0 ||
		len(f.FieldValuesRequired) > 0 ||
		len(f.FieldValuesExcluded) > 0
}

// StringList unmarshals from either a single JSON string or an array of
// strings, the two shapes the platform accepts for dedupe keys.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	var rawValue any

	err := json.Unmarshal(b, &rawValue)
	if err != nil {
		return fmt.Errorf("unable to unmarshal string list: %w", err)
	}

	switch val := rawValue.(type) {
	case string:
		*l = StringList{val}
	case []any:
		out := make(StringList, 0, len(val))
		for _, v := range val {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("invalid string list element: %#v", v)
			}
			out = append(out, s)
		}
		*l = out
	default:
		return fmt.Errorf("invalid string list: %#v", rawValue)
	}

	return nil
}

func (l StringList) MarshalJSON() ([]byte, error) {
	if len(l) == 1 {
		//nolint: wrapcheck // no more error context needed
		return json.Marshal(l[0])
	}
	//nolint: wrapcheck // no more error context needed
	return json.Marshal([]string(l))
}
