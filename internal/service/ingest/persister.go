package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/campaign-ingest/internal/domain"
	"github.com/ignite/campaign-ingest/internal/pkg/logger"
)

// DefaultBatchSize is the number of rows written per insert statement.
const DefaultBatchSize = 1000

const reconcileTimeout = 5 * time.Second

// PersistSummary describes how far a persist call got. FailedBatch is the
// 1-based index of the chunk that failed, zero when none did.
type PersistSummary struct {
	TotalPersisted int
	Batches        int
	StoppedEarly   bool
	FailedBatch    int
}

// Persister writes normalized records in sequential fixed-size chunks.
type Persister struct {
	repo      Repository
	batchSize int
	progress  ProgressTracker
}

// NewPersister creates a persister. A non-positive batch size falls back to
// DefaultBatchSize; progress may be nil.
func NewPersister(repo Repository, batchSize int, progress ProgressTracker) *Persister {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Persister{repo: repo, batchSize: batchSize, progress: progress}
}

// BatchSize returns the configured chunk size.
func (p *Persister) BatchSize() int { return p.batchSize }

// Persist links every record to report and inserts them chunk by chunk. It
// stops at the first failing chunk and returns a *PersistenceError carrying
// the number of rows committed before it. Committed chunks are never rolled
// back.
//
// Whenever the persisted count differs from report.TotalRecords, the report
// total is updated to match. That update is best-effort: a failure is logged
// and the stale total left in place.
func (p *Persister) Persist(ctx context.Context, report *domain.CampaignReport, records []Record) (PersistSummary, error) {
	return p.persist(ctx, report, records, nil)
}

// batchHook runs after every committed chunk.
type batchHook func(ctx context.Context, persisted int)

func (p *Persister) persist(ctx context.Context, report *domain.CampaignReport, records []Record, afterBatch batchHook) (PersistSummary, error) {
	var (
		sum PersistSummary
		err error
	)
	switch report.Kind {
	case domain.KindContactList:
		rows := make([]domain.ContactRecord, 0, len(records))
		for _, r := range records {
			if r.Contact == nil {
				continue
			}
			c := *r.Contact
			c.CampaignName = report.CampaignName
			rows = append(rows, c)
		}
		sum, err = persistChunks(ctx, p, report.ReportID, rows, p.repo.InsertContacts, afterBatch)
	case domain.KindAnalyticsReport:
		rows := make([]domain.AnalyticsRecord, 0, len(records))
		for _, r := range records {
			if r.Analytics == nil {
				continue
			}
			a := *r.Analytics
			a.ReportID = report.ReportID
			rows = append(rows, a)
		}
		sum, err = persistChunks(ctx, p, report.ReportID, rows, p.repo.InsertAnalytics, afterBatch)
	default:
		return PersistSummary{}, fmt.Errorf("%w: %q", ErrUnknownKind, report.Kind)
	}

	p.reconcile(ctx, report, sum.TotalPersisted)
	return sum, err
}

func persistChunks[T any](ctx context.Context, p *Persister, reportID string, rows []T, insert func(context.Context, []T) error, afterBatch batchHook) (PersistSummary, error) {
	var sum PersistSummary
	for start := 0; start < len(rows); start += p.batchSize {
		end := min(start+p.batchSize, len(rows))
		batchNo := sum.Batches + 1

		err := ctx.Err()
		if err == nil {
			err = insert(ctx, rows[start:end])
		}
		if err != nil {
			sum.StoppedEarly = true
			sum.FailedBatch = batchNo
			logger.Error("batch insert failed",
				"report_id", reportID, "batch", batchNo, "persisted", sum.TotalPersisted, "error", err)
			return sum, &PersistenceError{
				Kind:                   BatchInsertFailed,
				ReportID:               reportID,
				PersistedBeforeFailure: sum.TotalPersisted,
				Err:                    err,
			}
		}

		sum.Batches++
		sum.TotalPersisted += end - start
		if p.progress != nil {
			if perr := p.progress.BatchDone(ctx, reportID, sum.TotalPersisted); perr != nil {
				logger.Warn("progress update failed", "report_id", reportID, "error", perr)
			}
		}
		if afterBatch != nil {
			afterBatch(ctx, sum.TotalPersisted)
		}
	}
	return sum, nil
}

// reconcile runs even after cancellation so a partial upload still ends up
// with an accurate total.
func (p *Persister) reconcile(ctx context.Context, report *domain.CampaignReport, persisted int) {
	if persisted == report.TotalRecords {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
	defer cancel()
	if err := p.repo.UpdateReportTotal(rctx, report.ReportID, persisted); err != nil {
		logger.Warn("report total reconciliation failed",
			"report_id", report.ReportID, "declared", report.TotalRecords, "persisted", persisted, "error", err)
		return
	}
	report.TotalRecords = persisted
}
