package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ignite/campaign-ingest/internal/domain"
)

// ExportFileName builds the download name <prefix>_<campaign>_<YYYY-MM-DD>.csv.
func ExportFileName(kind domain.RecordKind, campaign string, at time.Time) string {
	prefix := "telefonos"
	if kind == domain.KindAnalyticsReport {
		prefix = "analiticas"
	}
	return fmt.Sprintf("%s_%s_%s.csv", prefix, campaign, at.UTC().Format("2006-01-02"))
}

// Export writes a report's records as CSV to w and returns the suggested
// file name. Contact lists export the phone column only; analytics reports
// export phone_number,status,message_id,errors filtered by status.
func (s *Service) Export(ctx context.Context, kind domain.RecordKind, name, status string, w io.Writer) (string, error) {
	detail, err := s.GetReport(ctx, kind, name, status)
	if err != nil {
		return "", err
	}
	if err := WriteCSV(w, detail); err != nil {
		return "", err
	}
	return ExportFileName(kind, detail.Report.CampaignName, s.now()), nil
}

// WriteCSV encodes the records of detail. Fields containing commas or quotes
// (typically the errors JSON) are quoted.
func WriteCSV(w io.Writer, detail *ReportDetail) error {
	cw := csv.NewWriter(w)
	switch detail.Report.Kind {
	case domain.KindContactList:
		if err := cw.Write([]string{"phone"}); err != nil {
			return err
		}
		for _, c := range detail.Contacts {
			if err := cw.Write([]string{c.Phone}); err != nil {
				return err
			}
		}
	case domain.KindAnalyticsReport:
		if err := cw.Write([]string{"phone_number", "status", "message_id", "errors"}); err != nil {
			return err
		}
		for _, a := range detail.Analytics {
			msgID := ""
			if a.MessageID != nil {
				msgID = *a.MessageID
			}
			if err := cw.Write([]string{a.Phone, a.Status, msgID, string(a.ErrorDetail)}); err != nil {
				return err
			}
		}
	default:
		return ErrUnknownKind
	}
	cw.Flush()
	return cw.Error()
}

// reportPageSize bounds each ListReports call made by ExportReports.
const reportPageSize = 500

// ReportListFileName builds campañas_<kind>_<YYYY-MM-DD>.csv.
func ReportListFileName(kind domain.RecordKind, at time.Time) string {
	return fmt.Sprintf("campañas_%s_%s.csv", kind, at.UTC().Format("2006-01-02"))
}

// ExportReports writes every report of kind, newest first, as CSV to w and
// returns the suggested file name.
func (s *Service) ExportReports(ctx context.Context, kind domain.RecordKind, w io.Writer) (string, error) {
	if !kind.Valid() {
		return "", ErrUnknownKind
	}
	var all []domain.CampaignReport
	for offset := 0; ; offset += reportPageSize {
		page, total, err := s.repo.ListReports(ctx, kind, reportPageSize, offset)
		if err != nil {
			return "", err
		}
		all = append(all, page...)
		if len(page) < reportPageSize || len(all) >= total {
			break
		}
	}
	if err := WriteReportsCSV(w, all); err != nil {
		return "", err
	}
	return ReportListFileName(kind, s.now()), nil
}

// WriteReportsCSV encodes one line per report:
// campaign,total_records,uploaded_at,description.
func WriteReportsCSV(w io.Writer, reports []domain.CampaignReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"campaign", "total_records", "uploaded_at", "description"}); err != nil {
		return err
	}
	for _, r := range reports {
		row := []string{
			r.CampaignName,
			strconv.Itoa(r.TotalRecords),
			r.UploadedAt.UTC().Format("2006-01-02"),
			r.Description,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
