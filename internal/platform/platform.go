package platform

import (
	"context"
	"log/slog"

	"github.com/sheetfed/federate/internal/models"
)

// PageSize is the platform's maximum record page size.
const PageSize = 10_000

// Source reads the platform resources a federation run consumes.
type Source interface {
	// ListSheets returns the sheets of the source workbook.
	ListSheets(ctx context.Context, workbook string) ([]models.Sheet, error)

	// GetRecords returns one page of up to PageSize records for a sheet.
	// An empty page terminates pagination.
	GetRecords(ctx context.Context, sheetID string, page int) ([]models.Record, error)
}

// Target provisions federated sheets and receives the finished records.
type Target interface {
	ProvisionSheet(ctx context.Context, workbook string, spec models.SheetSpec) (models.Sheet, error)
	InsertRecords(ctx context.Context, sheetID string, records []models.RowValues) error
}

// JobReporter is the platform's job status sink.
type JobReporter interface {
	Progress(ctx context.Context, percent int, info string) error
	Complete(ctx context.Context, outcome string) error
	Fail(ctx context.Context, reason string) error
}

// NoopReporter discards all job status updates.
type NoopReporter struct{}

func (NoopReporter) Progress(context.Context, int, string) error { return nil }
func (NoopReporter) Complete(context.Context, string) error      { return nil }
func (NoopReporter) Fail(context.Context, string) error          { return nil }

// LogReporter forwards job status to a logger, for runs outside the platform.
type LogReporter struct {
	Log *slog.Logger
}

func (r LogReporter) Progress(_ context.Context, percent int, info string) error {
	r.Log.Info("job progress", slog.Int("percent", percent), slog.String("info", info))
	return nil
}

func (r LogReporter) Complete(_ context.Context, outcome string) error {
	r.Log.Info("job complete", slog.String("outcome", outcome))
	return nil
}

func (r LogReporter) Fail(_ context.Context, reason string) error {
	r.Log.Error("job failed", slog.String("reason", reason))
	return nil
}
