package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/sheetfed/federate/internal/models"
)

// FileSource serves a source workbook from a directory of JSON documents,
// one per sheet:
//
//	{"slug": "orders", "name": "Orders",
//	 "fields": [{"key": "amount"}, ...],
//	 "records": [{"id": "r1", "values": {"amount": {"value": 100}}}, ...]}
//
// Sheet ids are taken from the document when present, otherwise assigned.
type FileSource struct {
	dir string

	mu     sync.Mutex
	sheets map[string]string // sheet id -> file path
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{
		dir:    dir,
		sheets: make(map[string]string),
	}
}

func (s *FileSource) ListSheets(_ context.Context, _ string) ([]models.Sheet, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}

	var sheets []models.Sheet
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sheet document %s: %w", entry.Name(), err)
		}
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("sheet document %s is not valid JSON", entry.Name())
		}

		doc := gjson.ParseBytes(data)

		sheet := models.Sheet{
			ID:   doc.Get("id").String(),
			Slug: doc.Get("slug").String(),
			Name: doc.Get("name").String(),
		}
		if sheet.Slug == "" {
			sheet.Slug = strings.TrimSuffix(entry.Name(), ".json")
		}
		if sheet.ID == "" {
			sheet.ID = uuid.NewString()
		}

		for _, field := range doc.Get("fields").Array() {
			sheet.Fields = append(sheet.Fields, models.SheetField{
				Key:   field.Get("key").String(),
				Type:  field.Get("type").String(),
				Label: field.Get("label").String(),
			})
		}

		s.mu.Lock()
		s.sheets[sheet.ID] = path
		s.mu.Unlock()

		sheets = append(sheets, sheet)
	}

	return sheets, nil
}

func (s *FileSource) GetRecords(_ context.Context, sheetID string, page int) ([]models.Record, error) {
	s.mu.Lock()
	path, ok := s.sheets[sheetID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown sheet id %q", sheetID)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sheet document: %w", err)
	}

	raw := gjson.GetBytes(data, "records")
	if !raw.Exists() {
		return nil, nil
	}

	var records []models.Record
	if err := json.Unmarshal([]byte(raw.Raw), &records); err != nil {
		return nil, fmt.Errorf("decode records for sheet %q: %w", sheetID, err)
	}

	start := page * PageSize
	if start >= len(records) {
		return nil, nil
	}
	end := min(start+PageSize, len(records))

	return records[start:end], nil
}

// FileTarget writes federated sheets into a directory, one JSON document per
// target sheet, named by slug.
type FileTarget struct {
	dir string

	mu    sync.Mutex
	slugs map[string]string // sheet id -> slug
}

func NewFileTarget(dir string) *FileTarget {
	return &FileTarget{
		dir:   dir,
		slugs: make(map[string]string),
	}
}

func (t *FileTarget) ProvisionSheet(_ context.Context, _ string, spec models.SheetSpec) (zero models.Sheet, _ error) {
	sheet := models.Sheet{
		ID:   uuid.NewString(),
		Slug: spec.Slug,
		Name: spec.Name,
	}
	for _, field := range spec.Fields {
		sheet.Fields = append(sheet.Fields, models.SheetField{Key: field.Key, Type: field.Type})
	}

	if err := os.MkdirAll(t.dir, 0o750); err != nil {
		return zero, fmt.Errorf("create target dir: %w", err)
	}

	t.mu.Lock()
	t.slugs[sheet.ID] = sheet.Slug
	t.mu.Unlock()

	return sheet, nil
}

func (t *FileTarget) InsertRecords(_ context.Context, sheetID string, records []models.RowValues) error {
	t.mu.Lock()
	slug, ok := t.slugs[sheetID]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown sheet id %q", sheetID)
	}

	doc := struct {
		Slug    string             `json:"slug"`
		Records []models.RowValues `json:"records"`
	}{Slug: slug, Records: records}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records for sheet %q: %w", slug, err)
	}

	path := filepath.Join(t.dir, slug+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write sheet document: %w", err)
	}

	return nil
}
