package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/campaign-ingest/internal/domain"
	"github.com/ignite/campaign-ingest/internal/service/ingest"
)

const (
	uniqueViolation = "23505"

	// campaignNameIndex enforces one report per (kind, campaign_name).
	campaignNameIndex = "idx_campaign_reports_kind_name"
	reportsPKey       = "campaign_reports_pkey"
)

// CampaignReportRepo implements ingest.Repository against PostgreSQL.
type CampaignReportRepo struct{ db *sql.DB }

// NewCampaignReportRepo creates a Postgres-backed campaign report repository.
func NewCampaignReportRepo(db *sql.DB) *CampaignReportRepo { return &CampaignReportRepo{db: db} }

func (r *CampaignReportRepo) CreateReport(ctx context.Context, rep *domain.CampaignReport) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_reports (report_id, kind, campaign_name, total_records, uploaded_at, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rep.ReportID, string(rep.Kind), rep.CampaignName, rep.TotalRecords, rep.UploadedAt, rep.Description)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case campaignNameIndex:
			return ingest.ErrDuplicateCampaign
		case reportsPKey:
			return fmt.Errorf("create campaign report %s: %w: %w", rep.ReportID, ingest.ErrReportIDTaken, err)
		}
	}
	if err != nil {
		return fmt.Errorf("create campaign report: %w", err)
	}
	return nil
}

// InsertContacts copies one chunk inside its own transaction, so a chunk is
// either fully visible or not at all.
func (r *CampaignReportRepo) InsertContacts(ctx context.Context, rows []domain.ContactRecord) error {
	return r.copyIn(ctx, "campaign_contacts", []string{"campaign_name", "phone", "contact_name"}, len(rows),
		func(i int) []interface{} {
			c := rows[i]
			return []interface{}{c.CampaignName, c.Phone, c.ContactName}
		})
}

func (r *CampaignReportRepo) InsertAnalytics(ctx context.Context, rows []domain.AnalyticsRecord) error {
	return r.copyIn(ctx, "campaign_analytics", []string{"report_id", "phone_number", "status", "message_id", "errors"}, len(rows),
		func(i int) []interface{} {
			a := rows[i]
			var msgID, errs interface{}
			if a.MessageID != nil {
				msgID = *a.MessageID
			}
			if len(a.ErrorDetail) > 0 {
				errs = string(a.ErrorDetail)
			}
			return []interface{}{a.ReportID, a.Phone, a.Status, msgID, errs}
		})
}

func (r *CampaignReportRepo) copyIn(ctx context.Context, table string, cols []string, n int, row func(int) []interface{}) error {
	if n == 0 {
		return nil
	}
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s batch: %w", table, err)
	}
	defer txn.Rollback()

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(table, cols...))
	if err != nil {
		return fmt.Errorf("prepare %s copy: %w", table, err)
	}
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			stmt.Close()
			return fmt.Errorf("copy %s row %d: %w", table, i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush %s copy: %w", table, err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close %s copy: %w", table, err)
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit %s batch: %w", table, err)
	}
	return nil
}

func (r *CampaignReportRepo) UpdateReportTotal(ctx context.Context, reportID string, total int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaign_reports SET total_records = $1 WHERE report_id = $2`, total, reportID)
	if err != nil {
		return fmt.Errorf("update report total: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ingest.ErrReportNotFound
	}
	return nil
}

func (r *CampaignReportRepo) ListReports(ctx context.Context, kind domain.RecordKind, limit, offset int) ([]domain.CampaignReport, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaign_reports WHERE kind = $1`, string(kind)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaign reports: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT report_id, kind, campaign_name, total_records, uploaded_at, description
		FROM campaign_reports
		WHERE kind = $1
		ORDER BY uploaded_at DESC
		LIMIT $2 OFFSET $3
	`, string(kind), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaign reports: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignReport
	for rows.Next() {
		var rep domain.CampaignReport
		if err := rows.Scan(&rep.ReportID, &rep.Kind, &rep.CampaignName, &rep.TotalRecords, &rep.UploadedAt, &rep.Description); err != nil {
			return nil, 0, fmt.Errorf("scan campaign report: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate campaign reports: %w", err)
	}
	return out, total, nil
}

func (r *CampaignReportRepo) GetReportByName(ctx context.Context, kind domain.RecordKind, name string) (*domain.CampaignReport, error) {
	rep := &domain.CampaignReport{}
	err := r.db.QueryRowContext(ctx, `
		SELECT report_id, kind, campaign_name, total_records, uploaded_at, description
		FROM campaign_reports
		WHERE kind = $1 AND campaign_name = $2
	`, string(kind), name).Scan(&rep.ReportID, &rep.Kind, &rep.CampaignName, &rep.TotalRecords, &rep.UploadedAt, &rep.Description)
	if err == sql.ErrNoRows {
		return nil, ingest.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign report: %w", err)
	}
	return rep, nil
}

func (r *CampaignReportRepo) ListContacts(ctx context.Context, campaignName string) ([]domain.ContactRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT campaign_name, phone, contact_name
		FROM campaign_contacts
		WHERE campaign_name = $1
		ORDER BY phone
	`, campaignName)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.ContactRecord
	for rows.Next() {
		var c domain.ContactRecord
		if err := rows.Scan(&c.CampaignName, &c.Phone, &c.ContactName); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CampaignReportRepo) ListAnalytics(ctx context.Context, reportID, status string) ([]domain.AnalyticsRecord, error) {
	q := `
		SELECT report_id, phone_number, status, message_id, errors
		FROM campaign_analytics
		WHERE report_id = $1`
	args := []interface{}{reportID}
	if status != "" {
		// Same cleanup as ingest.NormalizeStatus, so filters agree with metrics.
		q += ` AND lower(btrim(replace(status, '"', ''))) = $2`
		args = append(args, ingest.NormalizeStatus(status))
	}
	q += ` ORDER BY phone_number`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list analytics: %w", err)
	}
	defer rows.Close()

	var out []domain.AnalyticsRecord
	for rows.Next() {
		var (
			a     domain.AnalyticsRecord
			msgID sql.NullString
			errs  []byte
		)
		if err := rows.Scan(&a.ReportID, &a.Phone, &a.Status, &msgID, &errs); err != nil {
			return nil, fmt.Errorf("scan analytics record: %w", err)
		}
		if msgID.Valid {
			a.MessageID = &msgID.String
		}
		if len(errs) > 0 {
			a.ErrorDetail = errs
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
