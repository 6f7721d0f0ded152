package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-ingest/internal/domain"
)

// IDGenerator produces report identifiers of the form RPT-<token>.
type IDGenerator interface {
	NewReportID() string
}

// TimeIDGenerator derives ids from the wall clock in milliseconds. Two calls
// within the same millisecond get consecutive values, so ids from one
// process never repeat.
type TimeIDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewTimeIDGenerator returns a generator reading the system clock.
func NewTimeIDGenerator() *TimeIDGenerator {
	return &TimeIDGenerator{now: time.Now}
}

func (g *TimeIDGenerator) NewReportID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return fmt.Sprintf("RPT-%d", ms)
}

// UUIDGenerator produces RPT-<uuid> ids, unique across processes.
type UUIDGenerator struct{}

func (UUIDGenerator) NewReportID() string { return "RPT-" + uuid.NewString() }

// Registrar writes the report header that every detail row hangs off.
type Registrar struct {
	repo Repository
	ids  IDGenerator
	now  func() time.Time
}

// NewRegistrar creates a registrar. A nil generator defaults to
// TimeIDGenerator.
func NewRegistrar(repo Repository, ids IDGenerator) *Registrar {
	if ids == nil {
		ids = NewTimeIDGenerator()
	}
	return &Registrar{repo: repo, ids: ids, now: time.Now}
}

// Register creates an undescribed report. See RegisterDescribed.
func (r *Registrar) Register(ctx context.Context, kind domain.RecordKind, name string, declared int) (*domain.CampaignReport, error) {
	return r.RegisterDescribed(ctx, kind, name, "", declared)
}

// RegisterDescribed creates the report with the declared record count. On failure
// nothing has been written and the caller must not attempt any detail
// inserts. ErrDuplicateCampaign is passed through unwrapped. A report id
// already taken by another instance is retried once with a fresh id.
func (r *Registrar) RegisterDescribed(ctx context.Context, kind domain.RecordKind, name, description string, declared int) (*domain.CampaignReport, error) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		report := &domain.CampaignReport{
			ReportID:     r.ids.NewReportID(),
			Kind:         kind,
			CampaignName: name,
			TotalRecords: declared,
			UploadedAt:   r.now().UTC(),
			Description:  description,
		}
		err = r.repo.CreateReport(ctx, report)
		switch {
		case err == nil:
			return report, nil
		case errors.Is(err, ErrDuplicateCampaign):
			return nil, ErrDuplicateCampaign
		case errors.Is(err, ErrReportIDTaken):
			continue
		}
		return nil, &PersistenceError{Kind: ReportWriteFailed, ReportID: report.ReportID, Err: err}
	}
	return nil, &PersistenceError{Kind: ReportWriteFailed, Err: err}
}
