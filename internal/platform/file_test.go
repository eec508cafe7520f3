package platform

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetfed/federate/internal/models"
)

func writeSheetDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestFileSourceListSheets(t *testing.T) {
	dir := t.TempDir()
	writeSheetDoc(t, dir, "orders.json", `{
		"id": "sh_orders",
		"slug": "orders",
		"name": "Orders",
		"fields": [{"key": "amount", "type": "number", "label": "Amount"}],
		"records": []
	}`)
	writeSheetDoc(t, dir, "bare.json", `{"records": []}`)
	writeSheetDoc(t, dir, "notes.txt", `ignored`)

	src := NewFileSource(dir)
	sheets, err := src.ListSheets(context.Background(), "Raw Imports")
	require.NoError(t, err)
	require.Len(t, sheets, 2)

	bySlug := make(map[string]models.Sheet, len(sheets))
	for _, sheet := range sheets {
		bySlug[sheet.Slug] = sheet
	}

	t.Run("declared metadata is honored", func(t *testing.T) {
		orders, ok := bySlug["orders"]
		require.True(t, ok)
		assert.Equal(t, "sh_orders", orders.ID)
		assert.Equal(t, "Orders", orders.Name)
		require.Len(t, orders.Fields, 1)
		assert.Equal(t, models.SheetField{Key: "amount", Type: "number", Label: "Amount"}, orders.Fields[0])
	})

	t.Run("missing slug falls back to filename, missing id is assigned", func(t *testing.T) {
		bare, ok := bySlug["bare"]
		require.True(t, ok)
		assert.NotEmpty(t, bare.ID)
	})

	t.Run("invalid JSON fails the listing", func(t *testing.T) {
		badDir := t.TempDir()
		writeSheetDoc(t, badDir, "broken.json", `{"slug":`)

		_, err := NewFileSource(badDir).ListSheets(context.Background(), "Raw Imports")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not valid JSON")
	})
}

func TestFileSourceGetRecords(t *testing.T) {
	dir := t.TempDir()
	writeSheetDoc(t, dir, "orders.json", `{
		"id": "sh_orders",
		"slug": "orders",
		"records": [
			{"id": "r1", "values": {"amount": {"value": 100}}},
			{"id": "r2", "values": {"amount": {"value": 200}}}
		]
	}`)

	src := NewFileSource(dir)
	_, err := src.ListSheets(context.Background(), "Raw Imports")
	require.NoError(t, err)

	t.Run("first page returns all records", func(t *testing.T) {
		records, err := src.GetRecords(context.Background(), "sh_orders", 0)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "r1", records[0].ID)
		assert.Equal(t, models.CellValue{Value: float64(100)}, records[0].Values["amount"])
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		records, err := src.GetRecords(context.Background(), "sh_orders", 1)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("unknown sheet id", func(t *testing.T) {
		_, err := src.GetRecords(context.Background(), "sh_missing", 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown sheet id")
	})
}

func TestFileTarget(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "federated")
	tgt := NewFileTarget(dir)

	spec := models.SheetSpec{
		Name:   "Orders",
		Slug:   "orders",
		Fields: []models.FieldSpec{{Key: "total", Type: "number"}},
	}

	sheet, err := tgt.ProvisionSheet(context.Background(), "Federated", spec)
	require.NoError(t, err)
	assert.NotEmpty(t, sheet.ID)
	assert.Equal(t, "orders", sheet.Slug)
	require.Len(t, sheet.Fields, 1)
	assert.Equal(t, "total", sheet.Fields[0].Key)

	t.Run("insert writes one document per slug", func(t *testing.T) {
		records := []models.RowValues{
			{"total": models.CellValue{Value: 100}},
		}
		require.NoError(t, tgt.InsertRecords(context.Background(), sheet.ID, records))

		data, err := os.ReadFile(filepath.Join(dir, "orders.json"))
		require.NoError(t, err)

		var doc struct {
			Slug    string             `json:"slug"`
			Records []models.RowValues `json:"records"`
		}
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "orders", doc.Slug)
		require.Len(t, doc.Records, 1)
		assert.Equal(t, models.CellValue{Value: float64(100)}, doc.Records[0]["total"])
	})

	t.Run("insert into unknown sheet id", func(t *testing.T) {
		err := tgt.InsertRecords(context.Background(), "sh_missing", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown sheet id")
	})
}
