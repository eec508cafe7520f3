package models

// CellValue is the platform's wire shape for a single cell.
type CellValue struct {
	Value any `json:"value"`
}

// RowValues maps field keys to cell values for one record.
type RowValues map[string]CellValue

// Clone returns a shallow copy of the row. Cell values themselves are not
// copied; the engine never mutates them in place.
func (r RowValues) Clone() RowValues {
	out := make(RowValues, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Record is a platform-owned record as returned by the record paging API.
type Record struct {
	ID     string    `json:"id"`
	Values RowValues `json:"values"`
}

// SheetField describes one column of a live platform sheet.
type SheetField struct {
	Key   string `json:"key"`
	Type  string `json:"type,omitempty"`
	Label string `json:"label,omitempty"`
}

// Sheet is a live platform sheet as returned by the sheet listing API.
type Sheet struct {
	ID     string       `json:"id"`
	Slug   string       `json:"slug"`
	Name   string       `json:"name"`
	Fields []SheetField `json:"fields"`
}
