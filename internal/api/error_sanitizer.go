package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ignite/campaign-ingest/internal/pkg/httputil"
	"github.com/ignite/campaign-ingest/internal/pkg/logger"
	"github.com/ignite/campaign-ingest/internal/progress"
	"github.com/ignite/campaign-ingest/internal/service/ingest"
)

// validationDetails is the machine-readable part of a 400 response.
type validationDetails struct {
	Line     int    `json:"line,omitempty"`
	Found    int    `json:"found,omitempty"`
	Expected string `json:"expected,omitempty"`
	Field    string `json:"field,omitempty"`
}

// persistenceDetails tells the client how much of a failed upload landed.
type persistenceDetails struct {
	ReportID               string `json:"report_id,omitempty"`
	PersistedBeforeFailure int    `json:"persisted_before_failure"`
}

// respondError maps pipeline errors to status codes. Validation messages are
// returned verbatim since they describe the user's file. Storage errors are
// logged in full and answered with a message that carries counts but no
// driver text.
func respondError(w http.ResponseWriter, err error) {
	var (
		ve *ingest.ValidationError
		pe *ingest.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		httputil.ErrorWithCode(w, http.StatusBadRequest, string(ve.Kind), ve.Error(), validationDetails{
			Line: ve.Line, Found: ve.Found, Expected: ve.Expected, Field: ve.Field,
		})
	case errors.Is(err, ingest.ErrDuplicateCampaign), errors.Is(err, ingest.ErrUploadInProgress):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, ingest.ErrReportNotFound), errors.Is(err, progress.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, ingest.ErrUnknownKind):
		httputil.NotFound(w, "unknown campaign kind")
	case errors.As(err, &pe):
		logger.Error("upload persistence failed", "report_id", pe.ReportID, "kind", pe.Kind, "error", pe.Err)
		httputil.ErrorWithCode(w, http.StatusInternalServerError, string(pe.Kind), persistenceMessage(pe), persistenceDetails{
			ReportID: pe.ReportID, PersistedBeforeFailure: pe.PersistedBeforeFailure,
		})
	default:
		httputil.InternalError(w, err)
	}
}

func persistenceMessage(pe *ingest.PersistenceError) string {
	if pe.Kind == ingest.BatchInsertFailed {
		return fmt.Sprintf("error saving records: %d records were saved before the failure; uploading the file again will duplicate them",
			pe.PersistedBeforeFailure)
	}
	return "error saving the campaign report; nothing was stored, the upload can be retried"
}
