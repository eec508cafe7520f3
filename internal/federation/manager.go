package federation

import (
	"log/slog"
	"sort"

	"github.com/sheetfed/federate/internal/filter"
	"github.com/sheetfed/federate/internal/mapping"
	"github.com/sheetfed/federate/internal/merge"
	"github.com/sheetfed/federate/internal/models"
	"github.com/sheetfed/federate/internal/validation"
)

// Manager compiles a validated federation config into per-source-sheet
// mapping tables, accumulates transformed records as batches stream in, and
// finalizes each target sheet with dedupe, filtering and virtual-field
// erasure. It is scoped to one federation run and is not safe for concurrent
// use; the driver serializes all calls.
type Manager struct {
	cfg models.FederationConfig
	log *slog.Logger

	recordsBySheetID map[string][]models.RowValues
	sourceMappings   map[string][]mapping.Mapping
	dedupeConfigs    map[string]*models.DedupeConfig
	sheetFilters     map[string]*models.FilterConfig
	virtualFieldKeys map[string]map[string]struct{}

	sheetSpecs map[string]models.SheetSpec
}

// NewManager validates the config and seeds the mapping table with every
// source sheet slug the config references. A validation failure makes the
// manager unusable and is returned as-is for the caller to fail the job with.
func NewManager(cfg models.FederationConfig, log *slog.Logger) (*Manager, error) {
	sourceSlugs, err := validation.ValidateConfig(cfg)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = slog.Default()
	}

	m := &Manager{
		cfg:              cfg,
		log:              log,
		recordsBySheetID: make(map[string][]models.RowValues),
		sourceMappings:   make(map[string][]mapping.Mapping, len(sourceSlugs)),
		dedupeConfigs:    make(map[string]*models.DedupeConfig),
		sheetFilters:     make(map[string]*models.FilterConfig),
		virtualFieldKeys: make(map[string]map[string]struct{}),
		sheetSpecs:       make(map[string]models.SheetSpec, len(cfg.FederatedWorkbook.Sheets)),
	}

	for slug := range sourceSlugs {
		m.sourceMappings[slug] = nil
	}

	for _, sheet := range cfg.FederatedWorkbook.Sheets {
		m.sheetSpecs[sheet.Slug] = sheet
	}

	return m, nil
}

// HasSourceSheet reports whether the config references the given source sheet
// slug, letting the driver skip sheets no mapping reads from.
func (m *Manager) HasSourceSheet(slug string) bool {
	_, ok := m.sourceMappings[slug]
	return ok
}

// CreateMappings compiles one target sheet spec against its live platform
// sheet. Must be called once per target sheet before records route into it.
func (m *Manager) CreateMappings(spec models.SheetSpec, sheet models.Sheet) {
	m.recordsBySheetID[sheet.ID] = []models.RowValues{}

	if spec.DedupeConfig != nil {
		m.dedupeConfigs[sheet.ID] = spec.DedupeConfig
	}
	if f := spec.Filter(); f != nil {
		m.sheetFilters[sheet.ID] = f
	}

	virtualKeys := make(map[string]struct{}, len(spec.VirtualFields))
	for _, field := range spec.VirtualFields {
		virtualKeys[field.Key] = struct{}{}
	}
	m.virtualFieldKeys[sheet.ID] = virtualKeys

	virtualBySource := m.virtualFieldsBySource(spec)

	if spec.IsUnpivot() {
		m.createUnpivotMappings(spec, sheet, virtualBySource)
		return
	}

	m.createFieldMappings(spec, sheet)
}

// virtualFieldsBySource builds, per referenced source sheet slug, the source
// field key to virtual field key map used to graft virtual values onto
// unpivoted records.
func (m *Manager) virtualFieldsBySource(spec models.SheetSpec) map[string]map[string]string {
	out := make(map[string]map[string]string)

	for _, field := range spec.VirtualFields {
		fc := field.FederateConfig
		if fc == nil {
			continue
		}
		slug := fc.ResolvedSlug()
		if slug == "" || fc.SourceFieldKey == "" {
			m.log.Debug("virtual field has no resolvable source, skipping",
				slog.String("sheet", spec.Slug), slog.String("field", field.Key))
			continue
		}

		if out[slug] == nil {
			out[slug] = make(map[string]string)
		}
		out[slug][fc.SourceFieldKey] = field.Key
	}

	return out
}

func (m *Manager) createFieldMappings(spec models.SheetSpec, sheet models.Sheet) {
	var slugOrder []string
	fieldsBySlug := make(map[string]map[string]string)

	addField := func(field models.FieldSpec) {
		fc := field.FederateConfig
		if fc == nil {
			return
		}
		slug := fc.ResolvedSlug()
		if slug == "" || fc.SourceFieldKey == "" {
			m.log.Debug("field mapping incomplete, skipping",
				slog.String("sheet", spec.Slug), slog.String("field", field.Key))
			return
		}

		if fieldsBySlug[slug] == nil {
			slugOrder = append(slugOrder, slug)
			fieldsBySlug[slug] = make(map[string]string)
		}
		fieldsBySlug[slug][fc.SourceFieldKey] = field.Key
	}

	for _, field := range spec.Fields {
		addField(field)
	}
	for _, field := range spec.VirtualFields {
		addField(field)
	}

	for _, slug := range slugOrder {
		m.appendMapping(slug, &mapping.FieldMapping{
			SheetID:   sheet.ID,
			SheetSlug: spec.Slug,
			Fields:    fieldsBySlug[slug],
		})
	}
}

func (m *Manager) createUnpivotMappings(spec models.SheetSpec, sheet models.Sheet, virtualBySource map[string]map[string]string) {
	groupKeys := make([]string, 0, len(spec.UnpivotGroups))
	for key := range spec.UnpivotGroups {
		groupKeys = append(groupKeys, key)
	}
	sort.Strings(groupKeys)

	var slugOrder []string
	groupsBySlug := make(map[string][]mapping.GroupEntry)

	for _, key := range groupKeys {
		group := spec.UnpivotGroups[key]
		slug := group.ResolvedSlug()
		if slug == "" {
			m.log.Debug("unpivot group has no resolvable source sheet, skipping",
				slog.String("sheet", spec.Slug), slog.String("group", key))
			continue
		}

		if groupsBySlug[slug] == nil {
			slugOrder = append(slugOrder, slug)
		}
		groupsBySlug[slug] = append(groupsBySlug[slug], mapping.GroupEntry{Key: key, Group: group})
	}

	for _, slug := range slugOrder {
		m.appendMapping(slug, &mapping.UnpivotMapping{
			SheetID:       sheet.ID,
			SheetSlug:     spec.Slug,
			Groups:        groupsBySlug[slug],
			VirtualFields: virtualBySource[slug],
		})
	}
}

// appendMapping registers a compiled mapping under its source slug, adding
// slugs the validator did not see (allow_undeclared configs) on the fly.
func (m *Manager) appendMapping(slug string, mp mapping.Mapping) {
	m.sourceMappings[slug] = append(m.sourceMappings[slug], mp)
}

// AddRecords ingests one batch of raw records from a source sheet, routing
// each record through every mapping registered for that sheet. Unknown slugs
// and empty batches are no-ops.
func (m *Manager) AddRecords(sourceSlug string, records []models.Record) {
	mappings, ok := m.sourceMappings[sourceSlug]
	if !ok {
		m.log.Debug("no mappings for source sheet, dropping batch",
			slog.String("source_sheet", sourceSlug), slog.Int("records", len(records)))
		return
	}
	if len(records) == 0 {
		return
	}

	for _, mp := range mappings {
		sheetID := mp.TargetSheetID()
		for _, record := range records {
			if record.Values == nil {
				continue
			}

			processed := mapping.Process(record.Values, mp)
			if len(processed) == 0 {
				m.log.Debug("record produced no output",
					slog.String("source_sheet", sourceSlug),
					slog.String("target_sheet", mp.TargetSheetSlug()),
					slog.String("record_id", record.ID))
				continue
			}

			m.recordsBySheetID[sheetID] = append(m.recordsBySheetID[sheetID], processed...)
		}
	}
}

// GetRecords finalizes every mapped target sheet: dedupe, then filter, then
// strip virtual fields. Dedupe and filters run before stripping because both
// may reference virtual-only fields that must not leak into output.
func (m *Manager) GetRecords() map[string][]models.RowValues {
	out := make(map[string][]models.RowValues, len(m.recordsBySheetID))

	for sheetID, records := range m.recordsBySheetID {
		if len(records) == 0 {
			out[sheetID] = []models.RowValues{}
			continue
		}

		records = merge.Records(records, m.dedupeConfigs[sheetID])
		records = filter.Apply(records, m.sheetFilters[sheetID])
		out[sheetID] = m.stripVirtualFields(sheetID, records)
	}

	return out
}

func (m *Manager) stripVirtualFields(sheetID string, records []models.RowValues) []models.RowValues {
	virtualKeys := m.virtualFieldKeys[sheetID]
	if len(virtualKeys) == 0 {
		return records
	}

	out := make([]models.RowValues, 0, len(records))
	for _, record := range records {
		stripped := make(models.RowValues, len(record))
		for key, cell := range record {
			if _, ok := virtualKeys[key]; ok {
				continue
			}
			stripped[key] = cell
		}
		out = append(out, stripped)
	}

	return out
}

// FindBlueprint recovers the original sheet spec for a target sheet id by
// searching the compiled mappings. Introspection only; never fails hard.
func (m *Manager) FindBlueprint(sheetID string) (zero models.SheetSpec, _ bool) {
	for _, mappings := range m.sourceMappings {
		for _, mp := range mappings {
			if mp.TargetSheetID() != sheetID {
				continue
			}
			spec, ok := m.sheetSpecs[mp.TargetSheetSlug()]
			return spec, ok
		}
	}
	return zero, false
}

// ClearMappings resets all accumulated and derived state while keeping the
// validated set of source sheet slugs, so one manager can run several
// federation passes without re-validating the config.
func (m *Manager) ClearMappings() {
	m.recordsBySheetID = make(map[string][]models.RowValues)
	m.dedupeConfigs = make(map[string]*models.DedupeConfig)
	m.sheetFilters = make(map[string]*models.FilterConfig)
	m.virtualFieldKeys = make(map[string]map[string]struct{})

	for slug := range m.sourceMappings {
		m.sourceMappings[slug] = nil
	}
}
