package ingest

import (
	"context"
	"io"
	"time"

	"github.com/ignite/campaign-ingest/internal/domain"
)

// Repository defines the data access contract for campaign reports and
// their detail rows. Implementations must be safe for concurrent use.
type Repository interface {
	// CreateReport inserts the report header. Returns ErrDuplicateCampaign
	// if a report with the same kind and campaign name exists.
	CreateReport(ctx context.Context, r *domain.CampaignReport) error

	// InsertContacts writes one chunk of contact rows atomically.
	InsertContacts(ctx context.Context, rows []domain.ContactRecord) error

	// InsertAnalytics writes one chunk of analytics rows atomically.
	InsertAnalytics(ctx context.Context, rows []domain.AnalyticsRecord) error

	// UpdateReportTotal overwrites total_records for the given report.
	UpdateReportTotal(ctx context.Context, reportID string, total int) error

	// ListReports returns reports of a kind ordered by uploaded_at DESC,
	// along with the unpaginated total.
	ListReports(ctx context.Context, kind domain.RecordKind, limit, offset int) ([]domain.CampaignReport, int, error)

	// GetReportByName returns ErrReportNotFound if no report matches.
	GetReportByName(ctx context.Context, kind domain.RecordKind, name string) (*domain.CampaignReport, error)

	// ListContacts returns a campaign's contacts ordered by phone.
	ListContacts(ctx context.Context, campaignName string) ([]domain.ContactRecord, error)

	// ListAnalytics returns a report's analytics rows ordered by phone. A
	// non-empty status, already passed through NormalizeStatus, keeps rows
	// whose stored status normalizes to the same value.
	ListAnalytics(ctx context.Context, reportID, status string) ([]domain.AnalyticsRecord, error)
}

// Archiver stores the raw upload for audit. Failures are logged, never fatal.
type Archiver interface {
	Archive(ctx context.Context, report *domain.CampaignReport, fileName string, body []byte) (string, error)
}

// Notifier announces finished uploads to downstream consumers.
type Notifier interface {
	UploadCompleted(ctx context.Context, ev UploadEvent) error
}

// ProgressTracker records batch progress so clients can poll long uploads.
type ProgressTracker interface {
	Start(ctx context.Context, reportID string, total, batches int) error
	BatchDone(ctx context.Context, reportID string, persisted int) error
	Finish(ctx context.Context, reportID string, persisted int, failure error) error
}

// LockFactory hands out a per-campaign mutual exclusion lock.
type LockFactory interface {
	NewLock(key string, ttl time.Duration) Lock
}

// Lock is a non-blocking exclusive lock.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
}

// UploadEvent describes a finished upload, successful or partial.
type UploadEvent struct {
	ReportID     string            `json:"report_id"`
	Kind         domain.RecordKind `json:"kind"`
	CampaignName string            `json:"campaign_name"`
	Persisted    int               `json:"persisted"`
	Declared     int               `json:"declared"`
	Partial      bool              `json:"partial"`
	ArchiveKey   string            `json:"archive_key,omitempty"`
	CompletedAt  time.Time         `json:"completed_at"`
}

// UploadRequest is the intake payload: the campaign name form field and the
// uploaded file.
type UploadRequest struct {
	Kind         domain.RecordKind
	CampaignName string
	Description  string
	FileName     string
	Size         int64
	Content      io.Reader
}
