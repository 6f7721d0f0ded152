package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-ingest/internal/domain"
	"github.com/ignite/campaign-ingest/internal/pkg/httputil"
	"github.com/ignite/campaign-ingest/internal/progress"
	"github.com/ignite/campaign-ingest/internal/service/ingest"
)

// multipartOverhead is allowed on top of the file limit for form fields and
// part headers.
const multipartOverhead = 1 << 20

// ProgressReader looks up upload progress.
type ProgressReader interface {
	Get(ctx context.Context, reportID string) (*progress.Progress, error)
}

// Handlers serves the campaign upload API.
type Handlers struct {
	svc            *ingest.Service
	progress       ProgressReader
	maxUploadBytes int64
}

// NewHandlers creates handlers. progress may be nil when Redis is not
// configured.
func NewHandlers(svc *ingest.Service, progress ProgressReader, maxUploadBytes int64) *Handlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = ingest.DefaultMaxUploadBytes
	}
	return &Handlers{svc: svc, progress: progress, maxUploadBytes: maxUploadBytes}
}

func kindParam(r *http.Request) (domain.RecordKind, bool) {
	return domain.ParseRecordKind(chi.URLParam(r, "kind"))
}

// campaignParam returns the decoded campaign name. chi matches on RawPath
// when the request carries one (an escaped '/' for instance), and only then
// is the parameter still escaped.
func campaignParam(r *http.Request) string {
	raw := chi.URLParam(r, "campaignName")
	if r.URL.RawPath == "" {
		return raw
	}
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

// HandleUpload accepts a multipart form with campaignName, csvFile and an
// optional description.
//
//	POST /api/campaigns/{kind}/uploads
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		respondError(w, ingest.ErrUnknownKind)
		return
	}

	if r.ContentLength > h.maxUploadBytes+multipartOverhead {
		respondError(w, ingest.FileTooLargeError(h.maxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, ingest.FileTooLargeError(h.maxUploadBytes))
			return
		}
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := ingest.UploadRequest{
		Kind:         kind,
		CampaignName: r.FormValue("campaignName"),
		Description:  r.FormValue("description"),
	}
	file, header, err := r.FormFile("csvFile")
	switch {
	case err == nil:
		defer file.Close()
		req.FileName = header.Filename
		req.Size = header.Size
		req.Content = file
	case !errors.Is(err, http.ErrMissingFile):
		httputil.BadRequest(w, "invalid file upload: "+err.Error())
		return
	}

	res, err := h.svc.Upload(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Success(w, http.StatusCreated, res.Message, res)
}

// HandleListReports lists reports newest first.
//
//	GET /api/campaigns/{kind}/reports?page=1&limit=50
func (h *Handlers) HandleListReports(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		respondError(w, ingest.ErrUnknownKind)
		return
	}
	params := ParsePagination(r, 50, 200)
	reports, total, err := h.svc.ListReports(r.Context(), kind, params.Limit, params.Offset)
	if err != nil {
		respondError(w, err)
		return
	}
	if reports == nil {
		reports = []domain.CampaignReport{}
	}
	httputil.OK(w, NewPaginatedResponse(reports, params, total))
}

// HandleGetReport returns one report with its records.
//
//	GET /api/campaigns/{kind}/reports/{campaignName}?status=all
func (h *Handlers) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		respondError(w, ingest.ErrUnknownKind)
		return
	}
	detail, err := h.svc.GetReport(r.Context(), kind, campaignParam(r), r.URL.Query().Get("status"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, detail)
}

// HandleMetrics returns delivery metrics for an analytics report.
//
//	GET /api/campaigns/analitica/reports/{campaignName}/metrics
func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if kind, _ := kindParam(r); kind != domain.KindAnalyticsReport {
		respondError(w, ingest.ErrUnknownKind)
		return
	}
	m, err := h.svc.Metrics(r.Context(), campaignParam(r))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, m)
}

// HandleExport downloads the report records as CSV. The body is rendered
// before any header is written so failures still get a JSON error.
//
//	GET /api/campaigns/{kind}/reports/{campaignName}/export?status=failed
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		respondError(w, ingest.ErrUnknownKind)
		return
	}
	var buf bytes.Buffer
	name, err := h.svc.Export(r.Context(), kind, campaignParam(r), r.URL.Query().Get("status"), &buf)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Attachment(w, "text/csv; charset=utf-8", name)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleExportReports downloads the list of reports as CSV.
//
//	GET /api/campaigns/{kind}/reports/export
func (h *Handlers) HandleExportReports(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		respondError(w, ingest.ErrUnknownKind)
		return
	}
	var buf bytes.Buffer
	name, err := h.svc.ExportReports(r.Context(), kind, &buf)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Attachment(w, "text/csv; charset=utf-8", name)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleProgress reports batch progress for an upload.
//
//	GET /api/uploads/{reportID}/progress
func (h *Handlers) HandleProgress(w http.ResponseWriter, r *http.Request) {
	if h.progress == nil {
		httputil.NotFound(w, "progress tracking is not enabled")
		return
	}
	p, err := h.progress.Get(r.Context(), chi.URLParam(r, "reportID"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, p)
}
