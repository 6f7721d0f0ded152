package ingest_test

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/ignite/campaign-ingest/internal/domain"
	"github.com/ignite/campaign-ingest/internal/service/ingest"
)

var errStore = errors.New("store unavailable")

// memRepo is an in-memory ingest repository for unit testing. failInsertOn
// makes the Nth insert call (1-based) fail.
type memRepo struct {
	mu        sync.Mutex
	reports   map[string]*domain.CampaignReport // keyed by report id
	contacts  []domain.ContactRecord
	analytics []domain.AnalyticsRecord

	insertCalls  int
	batchSizes   []int
	failInsertOn int
	failCreate   bool
	failUpdate   bool
	updates      int
}

func newMemRepo() *memRepo {
	return &memRepo{reports: make(map[string]*domain.CampaignReport)}
}

func (m *memRepo) CreateReport(_ context.Context, r *domain.CampaignReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errStore
	}
	if _, taken := m.reports[r.ReportID]; taken {
		return ingest.ErrReportIDTaken
	}
	for _, existing := range m.reports {
		if existing.Kind == r.Kind && existing.CampaignName == r.CampaignName {
			return ingest.ErrDuplicateCampaign
		}
	}
	cp := *r
	m.reports[r.ReportID] = &cp
	return nil
}

func (m *memRepo) insert() error {
	m.insertCalls++
	if m.failInsertOn > 0 && m.insertCalls == m.failInsertOn {
		return errStore
	}
	return nil
}

func (m *memRepo) InsertContacts(_ context.Context, rows []domain.ContactRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insert(); err != nil {
		return err
	}
	m.batchSizes = append(m.batchSizes, len(rows))
	m.contacts = append(m.contacts, rows...)
	return nil
}

func (m *memRepo) InsertAnalytics(_ context.Context, rows []domain.AnalyticsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insert(); err != nil {
		return err
	}
	m.batchSizes = append(m.batchSizes, len(rows))
	m.analytics = append(m.analytics, rows...)
	return nil
}

func (m *memRepo) UpdateReportTotal(_ context.Context, reportID string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.failUpdate {
		return errStore
	}
	r, ok := m.reports[reportID]
	if !ok {
		return ingest.ErrReportNotFound
	}
	r.TotalRecords = total
	return nil
}

func (m *memRepo) ListReports(_ context.Context, kind domain.RecordKind, limit, offset int) ([]domain.CampaignReport, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CampaignReport
	for _, r := range m.reports {
		if r.Kind == kind {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) || limit <= 0 {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *memRepo) GetReportByName(_ context.Context, kind domain.RecordKind, name string) (*domain.CampaignReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.Kind == kind && r.CampaignName == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ingest.ErrReportNotFound
}

func (m *memRepo) ListContacts(_ context.Context, campaignName string) ([]domain.ContactRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ContactRecord
	for _, c := range m.contacts {
		if c.CampaignName == campaignName {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}

func (m *memRepo) ListAnalytics(_ context.Context, reportID, status string) ([]domain.AnalyticsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AnalyticsRecord
	for _, a := range m.analytics {
		if a.ReportID != reportID {
			continue
		}
		if status != "" && ingest.NormalizeStatus(a.Status) != status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}

func (m *memRepo) report(id string) domain.CampaignReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.reports[id]
}

// seqIDs hands out RPT-1, RPT-2, ...
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewReportID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return "RPT-" + strconv.Itoa(s.n)
}
