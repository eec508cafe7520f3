package federation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sheetfed/federate/internal/models"
	"github.com/sheetfed/federate/internal/platform"
)

// Runner drives one complete federation pass: construct the manager,
// provision target sheets, page every referenced source sheet through the
// engine, and write the finalized records back. The engine stays synchronous;
// the runner only sequences the platform calls around it.
type Runner struct {
	cfg      models.FederationConfig
	source   platform.Source
	target   platform.Target
	reporter platform.JobReporter
	log      *slog.Logger
}

func NewRunner(cfg models.FederationConfig, source platform.Source, target platform.Target, reporter platform.JobReporter, log *slog.Logger) *Runner {
	if reporter == nil {
		reporter = platform.NoopReporter{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Runner{
		cfg:      cfg,
		source:   source,
		target:   target,
		reporter: reporter,
		log:      log,
	}
}

// Run executes the pass and returns the finalized records per target sheet
// id. A config error fails the job before any platform write happens.
func (r *Runner) Run(ctx context.Context) (map[string][]models.RowValues, error) {
	mgr, err := NewManager(r.cfg, r.log)
	if err != nil {
		if reportErr := r.reporter.Fail(ctx, err.Error()); reportErr != nil {
			r.log.Error("failed to report job failure", slog.Any("error", reportErr))
		}
		return nil, err
	}

	if err := r.reporter.Progress(ctx, 10, "creating federated sheets"); err != nil {
		return nil, fmt.Errorf("report progress: %w", err)
	}

	for _, spec := range r.cfg.FederatedWorkbook.Sheets {
		live, err := r.target.ProvisionSheet(ctx, r.cfg.FederatedWorkbook.Name, spec)
		if err != nil {
			return nil, fmt.Errorf("provision sheet %q: %w", spec.Slug, err)
		}
		mgr.CreateMappings(spec, live)
	}

	if err := r.reporter.Progress(ctx, 30, "reading source records"); err != nil {
		return nil, fmt.Errorf("report progress: %w", err)
	}

	sourceSheets, err := r.source.ListSheets(ctx, r.cfg.SourceWorkbookName)
	if err != nil {
		return nil, fmt.Errorf("list source sheets: %w", err)
	}

	for _, sheet := range sourceSheets {
		if !mgr.HasSourceSheet(sheet.Slug) {
			r.log.Debug("source sheet not referenced by config, skipping",
				slog.String("sheet", sheet.Slug))
			continue
		}

		if err := r.ingestSheet(ctx, mgr, sheet); err != nil {
			return nil, err
		}
	}

	if err := r.reporter.Progress(ctx, 70, "writing federated records"); err != nil {
		return nil, fmt.Errorf("report progress: %w", err)
	}

	out := mgr.GetRecords()
	for sheetID, records := range out {
		if len(records) == 0 {
			continue
		}
		if err := r.target.InsertRecords(ctx, sheetID, records); err != nil {
			return nil, fmt.Errorf("insert records into sheet %q: %w", sheetID, err)
		}
	}

	if err := r.reporter.Complete(ctx, "federation finished"); err != nil {
		return nil, fmt.Errorf("report completion: %w", err)
	}

	return out, nil
}

func (r *Runner) ingestSheet(ctx context.Context, mgr *Manager, sheet models.Sheet) error {
	for page := 0; ; page++ {
		records, err := r.source.GetRecords(ctx, sheet.ID, page)
		if err != nil {
			return fmt.Errorf("get records for sheet %q page %d: %w", sheet.Slug, page, err)
		}
		if len(records) == 0 {
			return nil
		}

		mgr.AddRecords(sheet.Slug, records)

		if len(records) < platform.PageSize {
			return nil
		}
	}
}
