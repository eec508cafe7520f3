package mapping

import "github.com/sheetfed/federate/internal/models"

// Process applies one compiled mapping to the values of one source record and
// returns zero or more target records. A missing or null source field is
// skipped, never fatal; a record that ends up with no populated fields is
// dropped rather than emitted empty.
func Process(values models.RowValues, m Mapping) []models.RowValues {
	switch m := m.(type) {
	case *FieldMapping:
		return processFields(values, m)
	case *UnpivotMapping:
		return processUnpivot(values, m)
	default:
		return nil
	}
}

func processFields(values models.RowValues, m *FieldMapping) []models.RowValues {
	result := make(models.RowValues, len(m.Fields))

	for sourceKey, targetKey := range m.Fields {
		cell, ok := values[sourceKey]
		if !ok || cell.Value == nil {
			continue
		}
		result[targetKey] = cell
	}

	if len(result) == 0 {
		return nil
	}

	return []models.RowValues{result}
}

func processUnpivot(values models.RowValues, m *UnpivotMapping) []models.RowValues {
	var out []models.RowValues

	for _, entry := range m.Groups {
		for _, rule := range entry.Group.FieldMappings {
			record := make(models.RowValues, len(rule))

			for targetKey, ruleValue := range rule {
				if literal, ok := models.LiteralValue(ruleValue); ok {
					record[targetKey] = models.CellValue{Value: literal}
					continue
				}

				cell, ok := values[ruleValue]
				if !ok || cell.Value == nil {
					continue
				}
				record[targetKey] = cell
			}

			// A rule that resolved nothing produces no row.
			if len(record) == 0 {
				continue
			}

			for sourceKey, virtualKey := range m.VirtualFields {
				cell, ok := values[sourceKey]
				if !ok || cell.Value == nil {
					continue
				}
				record[virtualKey] = cell
			}

			out = append(out, record)
		}
	}

	return out
}
