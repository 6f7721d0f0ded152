package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ignite/campaign-ingest/internal/domain"
	"github.com/ignite/campaign-ingest/internal/pkg/logger"
)

// DefaultMaxUploadBytes caps an upload at 10 MiB.
const DefaultMaxUploadBytes int64 = 10 << 20

// Options configures a Service. Every collaborator except the repository is
// optional.
type Options struct {
	MaxUploadBytes int64
	BatchSize      int
	LockTTL        time.Duration
	IDs            IDGenerator
	Archiver       Archiver
	Notifier       Notifier
	Progress       ProgressTracker
	Locks          LockFactory
}

// Service runs the upload pipeline and serves the read paths. Uploads are
// processed synchronously by the calling goroutine; the service itself keeps
// no per-upload state and is safe for concurrent use.
type Service struct {
	repo      Repository
	registrar *Registrar
	persister *Persister
	opts      Options
	now       func() time.Time
}

// NewService creates an ingest service backed by the given repository.
func NewService(repo Repository, opts Options) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	return &Service{
		repo:      repo,
		registrar: NewRegistrar(repo, opts.IDs),
		persister: NewPersister(repo, opts.BatchSize, opts.Progress),
		opts:      opts,
		now:       time.Now,
	}
}

// UploadResult is returned for uploads that persisted every record.
type UploadResult struct {
	Report  domain.CampaignReport `json:"report"`
	Summary PersistSummary        `json:"summary"`
	Message string                `json:"message"`
}

// Upload runs intake, validation, normalization, registration and batched
// persistence for one file. Validation errors are returned before anything
// is written. On a mid-stream batch failure the returned *PersistenceError
// reports how many rows were committed; the report header remains.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	spec, err := ColumnSpecFor(req.Kind)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.CampaignName)
	body, err := s.intake(req, name)
	if err != nil {
		return nil, err
	}

	var keepAlive batchHook
	if s.opts.Locks != nil {
		lock := s.opts.Locks.NewLock(fmt.Sprintf("upload:%s:%s", req.Kind, name), s.opts.LockTTL)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire upload lock: %w", err)
		}
		if !ok {
			return nil, ErrUploadInProgress
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("upload lock release failed", "campaign", name, "error", err)
			}
		}()
		keepAlive = func(ctx context.Context, persisted int) {
			if err := lock.Extend(ctx, s.opts.LockTTL); err != nil {
				logger.Warn("upload lock extend failed", "campaign", name, "persisted", persisted, "error", err)
			}
		}
	}

	lines, err := Validate(body, spec)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(lines))
	for _, l := range lines {
		rec, err := Normalize(l, req.Kind)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	report, err := s.registrar.RegisterDescribed(ctx, req.Kind, name, strings.TrimSpace(req.Description), len(lines))
	if err != nil {
		return nil, err
	}
	declared := report.TotalRecords
	logger.Info("campaign report created",
		"report_id", report.ReportID, "kind", report.Kind, "campaign", name, "declared", declared)

	archiveKey := s.archive(ctx, report, req.FileName, body)

	if s.opts.Progress != nil {
		batches := (len(records) + s.persister.BatchSize() - 1) / s.persister.BatchSize()
		if err := s.opts.Progress.Start(ctx, report.ReportID, len(records), batches); err != nil {
			logger.Warn("progress start failed", "report_id", report.ReportID, "error", err)
		}
	}

	sum, perr := s.persister.persist(ctx, report, records, keepAlive)

	if s.opts.Progress != nil {
		if err := s.opts.Progress.Finish(context.WithoutCancel(ctx), report.ReportID, sum.TotalPersisted, perr); err != nil {
			logger.Warn("progress finish failed", "report_id", report.ReportID, "error", err)
		}
	}
	s.notify(ctx, UploadEvent{
		ReportID:     report.ReportID,
		Kind:         report.Kind,
		CampaignName: report.CampaignName,
		Persisted:    sum.TotalPersisted,
		Declared:     declared,
		Partial:      sum.StoppedEarly,
		ArchiveKey:   archiveKey,
		CompletedAt:  s.now().UTC(),
	})

	if perr != nil {
		return nil, perr
	}
	logger.Info("campaign upload complete",
		"report_id", report.ReportID, "persisted", sum.TotalPersisted, "batches", sum.Batches)
	return &UploadResult{
		Report:  *report,
		Summary: sum,
		Message: successMessage(report, sum.TotalPersisted),
	}, nil
}

// intake enforces form-level rules and reads the file within the size cap.
func (s *Service) intake(req UploadRequest, name string) ([]byte, error) {
	if name == "" {
		return nil, &ValidationError{Kind: MissingField, Field: "campaignName"}
	}
	if req.Content == nil || req.FileName == "" {
		return nil, &ValidationError{Kind: MissingField, Field: "csvFile"}
	}
	if !strings.EqualFold(filepath.Ext(req.FileName), ".csv") {
		return nil, &ValidationError{Kind: UnsupportedFile}
	}
	tooLarge := FileTooLargeError(s.opts.MaxUploadBytes)
	if req.Size > s.opts.MaxUploadBytes {
		return nil, tooLarge
	}

	body, err := io.ReadAll(io.LimitReader(req.Content, s.opts.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(body)) > s.opts.MaxUploadBytes {
		return nil, tooLarge
	}
	if len(body) == 0 {
		return nil, &ValidationError{Kind: EmptyPayload}
	}
	return body, nil
}

func (s *Service) archive(ctx context.Context, report *domain.CampaignReport, fileName string, body []byte) string {
	if s.opts.Archiver == nil {
		return ""
	}
	key, err := s.opts.Archiver.Archive(ctx, report, fileName, body)
	if err != nil {
		logger.Warn("raw upload archival failed", "report_id", report.ReportID, "error", err)
		return ""
	}
	return key
}

func (s *Service) notify(ctx context.Context, ev UploadEvent) {
	if s.opts.Notifier == nil {
		return
	}
	if err := s.opts.Notifier.UploadCompleted(context.WithoutCancel(ctx), ev); err != nil {
		logger.Warn("upload event publish failed", "report_id", ev.ReportID, "error", err)
	}
}

func successMessage(report *domain.CampaignReport, persisted int) string {
	noun := "contact records"
	if report.Kind == domain.KindAnalyticsReport {
		noun = "analytics records"
	}
	return fmt.Sprintf("Campaign %s processed successfully. %d %s saved.", report.CampaignName, persisted, noun)
}

// ListReports returns one page of reports for a kind, newest first.
func (s *Service) ListReports(ctx context.Context, kind domain.RecordKind, limit, offset int) ([]domain.CampaignReport, int, error) {
	if !kind.Valid() {
		return nil, 0, ErrUnknownKind
	}
	return s.repo.ListReports(ctx, kind, limit, offset)
}

// ReportDetail is a report together with its detail rows. Only the slice
// matching the report kind is populated.
type ReportDetail struct {
	Report    domain.CampaignReport    `json:"report"`
	Contacts  []domain.ContactRecord   `json:"contacts,omitempty"`
	Analytics []domain.AnalyticsRecord `json:"analytics,omitempty"`
}

// GetReport loads a report by campaign name with its records. For analytics
// reports, status filters rows case-insensitively; "" and "all" disable the
// filter. Contact lists ignore status.
func (s *Service) GetReport(ctx context.Context, kind domain.RecordKind, name, status string) (*ReportDetail, error) {
	report, err := s.repo.GetReportByName(ctx, kind, name)
	if err != nil {
		return nil, err
	}
	detail := &ReportDetail{Report: *report}
	switch kind {
	case domain.KindContactList:
		detail.Contacts, err = s.repo.ListContacts(ctx, report.CampaignName)
	case domain.KindAnalyticsReport:
		detail.Analytics, err = s.repo.ListAnalytics(ctx, report.ReportID, statusFilter(status))
	default:
		return nil, ErrUnknownKind
	}
	if err != nil {
		return nil, fmt.Errorf("load records for %s: %w", report.ReportID, err)
	}
	return detail, nil
}

// Metrics recomputes status metrics from the persisted rows of an analytics
// report.
func (s *Service) Metrics(ctx context.Context, name string) (*domain.StatusMetrics, error) {
	detail, err := s.GetReport(ctx, domain.KindAnalyticsReport, name, "")
	if err != nil {
		return nil, err
	}
	m := Aggregate(detail.Analytics)
	return &m, nil
}

// statusFilter normalizes a status query the way Aggregate buckets stored
// statuses, so a filtered listing matches the metric counts.
func statusFilter(status string) string {
	status = NormalizeStatus(status)
	if status == "all" {
		return ""
	}
	return status
}
