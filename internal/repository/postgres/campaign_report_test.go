package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-ingest/internal/domain"
	"github.com/ignite/campaign-ingest/internal/service/ingest"
)

func newMock(t *testing.T) (*CampaignReportRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCampaignReportRepo(db), mock
}

func TestCreateReport(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO campaign_reports`).
		WithArgs("RPT-1", "difusion", "promo", 3, at, "Octubre, zona norte").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateReport(context.Background(), &domain.CampaignReport{
		ReportID: "RPT-1", Kind: domain.KindContactList, CampaignName: "promo", TotalRecords: 3, UploadedAt: at,
		Description: "Octubre, zona norte",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReportDuplicate(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO campaign_reports`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value", Constraint: "idx_campaign_reports_kind_name"})

	err := repo.CreateReport(context.Background(), &domain.CampaignReport{ReportID: "RPT-1", Kind: domain.KindContactList})
	assert.ErrorIs(t, err, ingest.ErrDuplicateCampaign)
}

func TestCreateReportIDCollisionIsNotADuplicateName(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO campaign_reports`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value", Constraint: "campaign_reports_pkey"})

	err := repo.CreateReport(context.Background(), &domain.CampaignReport{
		ReportID: "RPT-1700000000000", Kind: domain.KindContactList, CampaignName: "brand-new",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrReportIDTaken)
	assert.NotErrorIs(t, err, ingest.ErrDuplicateCampaign)

	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr), "driver error stays in the chain")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReportOtherUniqueViolationIsWrapped(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO campaign_reports`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "some_future_index"})

	err := repo.CreateReport(context.Background(), &domain.CampaignReport{ReportID: "RPT-1", Kind: domain.KindContactList})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ingest.ErrDuplicateCampaign)
	assert.NotErrorIs(t, err, ingest.ErrReportIDTaken)
	assert.Contains(t, err.Error(), "create campaign report")
}

func TestInsertContactsCopiesInTransaction(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`COPY "campaign_contacts" \("campaign_name", "phone", "contact_name"\) FROM STDIN`)
	prep.ExpectExec().WithArgs("promo", "+521", "Ana").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("promo", "+522", "Luis").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.InsertContacts(context.Background(), []domain.ContactRecord{
		{CampaignName: "promo", Phone: "+521", ContactName: "Ana"},
		{CampaignName: "promo", Phone: "+522", ContactName: "Luis"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAnalyticsRollsBackOnFailure(t *testing.T) {
	repo, mock := newMock(t)
	msgID := "wamid.1"
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`COPY "campaign_analytics"`)
	prep.ExpectExec().WithArgs("RPT-1", "+521", "read", msgID, `{"error":"x"}`).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("RPT-1", "+522", "sent", nil, nil).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.InsertAnalytics(context.Background(), []domain.AnalyticsRecord{
		{ReportID: "RPT-1", Phone: "+521", Status: "read", MessageID: &msgID, ErrorDetail: []byte(`{"error":"x"}`)},
		{ReportID: "RPT-1", Phone: "+522", Status: "sent"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy campaign_analytics row 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEmptyChunkIsNoop(t *testing.T) {
	repo, mock := newMock(t)
	require.NoError(t, repo.InsertContacts(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReportTotal(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`UPDATE campaign_reports SET total_records = \$1 WHERE report_id = \$2`).
		WithArgs(2500, "RPT-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE campaign_reports`).
		WithArgs(1, "RPT-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateReportTotal(context.Background(), "RPT-1", 2500))
	assert.ErrorIs(t, repo.UpdateReportTotal(context.Background(), "RPT-missing", 1), ingest.ErrReportNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReports(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaign_reports WHERE kind = \$1`).
		WithArgs("analitica").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`ORDER BY uploaded_at DESC`).
		WithArgs("analitica", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"report_id", "kind", "campaign_name", "total_records", "uploaded_at", "description"}).
			AddRow("RPT-2", "analitica", "b", 10, at, "").
			AddRow("RPT-1", "analitica", "a", 5, at.Add(-time.Hour), "first run"))

	reports, total, err := repo.ListReports(context.Background(), domain.KindAnalyticsReport, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, reports, 2)
	assert.Equal(t, "RPT-2", reports[0].ReportID)
	assert.Equal(t, domain.KindAnalyticsReport, reports[0].Kind)
	assert.Equal(t, "first run", reports[1].Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReportByNameNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`FROM campaign_reports`).
		WithArgs("difusion", "nope").
		WillReturnRows(sqlmock.NewRows([]string{"report_id", "kind", "campaign_name", "total_records", "uploaded_at", "description"}))

	_, err := repo.GetReportByName(context.Background(), domain.KindContactList, "nope")
	assert.ErrorIs(t, err, ingest.ErrReportNotFound)
}

func TestListAnalyticsStatusFilter(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`WHERE report_id = \$1 AND lower\(btrim\(replace\(status, '"', ''\)\)\) = \$2 ORDER BY phone_number`).
		WithArgs("RPT-1", "failed").
		WillReturnRows(sqlmock.NewRows([]string{"report_id", "phone_number", "status", "message_id", "errors"}).
			AddRow("RPT-1", "+521", "FAILED", nil, []byte(`{"error":"x"}`)).
			AddRow("RPT-1", "+522", `failed"`, "m2", nil))

	recs, err := repo.ListAnalytics(context.Background(), "RPT-1", ` "Failed" `)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Nil(t, recs[0].MessageID)
	assert.JSONEq(t, `{"error":"x"}`, string(recs[0].ErrorDetail))
	require.NotNil(t, recs[1].MessageID)
	assert.Equal(t, "m2", *recs[1].MessageID)
	assert.Nil(t, recs[1].ErrorDetail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListContacts(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`FROM campaign_contacts`).
		WithArgs("promo").
		WillReturnRows(sqlmock.NewRows([]string{"campaign_name", "phone", "contact_name"}).
			AddRow("promo", "+521", "Ana"))

	recs, err := repo.ListContacts(context.Background(), "promo")
	require.NoError(t, err)
	assert.Equal(t, []domain.ContactRecord{{CampaignName: "promo", Phone: "+521", ContactName: "Ana"}}, recs)
}

var _ ingest.Repository = (*CampaignReportRepo)(nil)
