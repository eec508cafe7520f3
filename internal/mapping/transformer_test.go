package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetfed/federate/internal/models"
)

func cell(v any) models.CellValue { return models.CellValue{Value: v} }

func TestProcessFieldMapping(t *testing.T) {
	m := &FieldMapping{
		SheetID:   "sh_1",
		SheetSlug: "orders",
		Fields:    map[string]string{"a": "x"},
	}

	t.Run("renames source field into target field", func(t *testing.T) {
		out := Process(models.RowValues{"a": cell("v")}, m)
		require.Len(t, out, 1)
		assert.Equal(t, models.RowValues{"x": cell("v")}, out[0])
	})

	t.Run("empty source values produce no records", func(t *testing.T) {
		out := Process(models.RowValues{}, m)
		assert.Empty(t, out)
	})

	t.Run("unmapped source fields are dropped", func(t *testing.T) {
		out := Process(models.RowValues{"a": cell(1), "b": cell(2)}, m)
		require.Len(t, out, 1)
		assert.Equal(t, models.RowValues{"x": cell(1)}, out[0])
	})

	t.Run("null source values are skipped", func(t *testing.T) {
		out := Process(models.RowValues{"a": cell(nil)}, m)
		assert.Empty(t, out)
	})

	t.Run("multiple fields map onto one record", func(t *testing.T) {
		multi := &FieldMapping{
			SheetID:   "sh_1",
			SheetSlug: "orders",
			Fields:    map[string]string{"amount": "total", "status": "state"},
		}

		out := Process(models.RowValues{"amount": cell(100), "status": cell("ok")}, multi)
		require.Len(t, out, 1)
		assert.Equal(t, models.RowValues{"total": cell(100), "state": cell("ok")}, out[0])
	})
}

func TestProcessUnpivotMapping(t *testing.T) {
	m := &UnpivotMapping{
		SheetID:   "sh_2",
		SheetSlug: "contacts",
		Groups: []GroupEntry{
			{Key: "people", Group: models.UnpivotGroup{
				SourceSheetSlug: "raw_people",
				FieldMappings: []map[string]string{
					{"name": "primary_contact", "kind": "<<primary>>"},
					{"name": "billing_contact", "kind": "<<billing>>"},
				},
			}},
		},
	}

	t.Run("one record per rule", func(t *testing.T) {
		values := models.RowValues{
			"primary_contact": cell("Ada"),
			"billing_contact": cell("Grace"),
		}

		out := Process(values, m)
		require.Len(t, out, 2)
		assert.Equal(t, models.RowValues{"name": cell("Ada"), "kind": cell("primary")}, out[0])
		assert.Equal(t, models.RowValues{"name": cell("Grace"), "kind": cell("billing")}, out[1])
	})

	t.Run("rule resolving nothing is dropped", func(t *testing.T) {
		values := models.RowValues{"primary_contact": cell("Ada")}

		out := Process(values, m)
		// The billing rule still has its literal column, so it survives.
		require.Len(t, out, 2)
		assert.Equal(t, models.RowValues{"kind": cell("billing")}, out[1])
	})

	t.Run("no populated columns yields no records", func(t *testing.T) {
		noLiterals := &UnpivotMapping{
			SheetID:   "sh_2",
			SheetSlug: "contacts",
			Groups: []GroupEntry{
				{Key: "people", Group: models.UnpivotGroup{
					SourceSheetSlug: "raw_people",
					FieldMappings: []map[string]string{
						{"name": "primary_contact"},
					},
				}},
			},
		}

		out := Process(models.RowValues{}, noLiterals)
		assert.Empty(t, out)
	})

	t.Run("virtual fields are stamped onto every produced record", func(t *testing.T) {
		stamped := &UnpivotMapping{
			SheetID:       m.SheetID,
			SheetSlug:     m.SheetSlug,
			Groups:        m.Groups,
			VirtualFields: map[string]string{"company_id": "vf_company"},
		}

		values := models.RowValues{
			"primary_contact": cell("Ada"),
			"billing_contact": cell("Grace"),
			"company_id":      cell("c_42"),
		}

		out := Process(values, stamped)
		require.Len(t, out, 2)
		for _, record := range out {
			assert.Equal(t, cell("c_42"), record["vf_company"])
		}
	})

	t.Run("missing virtual source value is skipped", func(t *testing.T) {
		stamped := &UnpivotMapping{
			SheetID:       m.SheetID,
			SheetSlug:     m.SheetSlug,
			Groups:        m.Groups,
			VirtualFields: map[string]string{"company_id": "vf_company"},
		}

		out := Process(models.RowValues{"primary_contact": cell("Ada")}, stamped)
		require.NotEmpty(t, out)
		_, ok := out[0]["vf_company"]
		assert.False(t, ok)
	})
}

func TestLiteralValue(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		literal bool
	}{
		{"<<primary>>", "primary", true},
		{"<<>>", "", true},
		{"plain_field", "", false},
		{"<<unclosed", "", false},
		{"unopened>>", "", false},
	}

	for _, tc := range tests {
		got, ok := models.LiteralValue(tc.in)
		assert.Equal(t, tc.literal, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
