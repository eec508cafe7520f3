package mapping

import "github.com/sheetfed/federate/internal/models"

// Mapping is the compiled projection of one target sheet against one source
// sheet. It is a closed sum: the only implementations are FieldMapping and
// UnpivotMapping, and Process switches over them exhaustively.
type Mapping interface {
	TargetSheetID() string
	TargetSheetSlug() string

	sealed()
}

// FieldMapping renames source fields into target fields, one output record
// per source record.
type FieldMapping struct {
	SheetID   string
	SheetSlug string

	// Fields maps source field key to target field key.
	Fields map[string]string
}

func (m *FieldMapping) TargetSheetID() string   { return m.SheetID }
func (m *FieldMapping) TargetSheetSlug() string { return m.SheetSlug }
func (m *FieldMapping) sealed()                 {}

// GroupEntry is one unpivot group with its config key, kept as a slice so
// compiled mappings have a stable group order.
type GroupEntry struct {
	Key   string
	Group models.UnpivotGroup
}

// UnpivotMapping fans one source record out into one output record per
// field-mapping rule across the mapping's groups.
type UnpivotMapping struct {
	SheetID   string
	SheetSlug string

	Groups []GroupEntry

	// VirtualFields maps source field key to virtual field key; every
	// produced row is stamped with the resolved virtual values.
	VirtualFields map[string]string
}

func (m *UnpivotMapping) TargetSheetID() string   { return m.SheetID }
func (m *UnpivotMapping) TargetSheetSlug() string { return m.SheetSlug }
func (m *UnpivotMapping) sealed()                 {}
