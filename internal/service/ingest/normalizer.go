package ingest

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ignite/campaign-ingest/internal/domain"
	"github.com/ignite/campaign-ingest/internal/pkg/logger"
)

// Positional layout of the two upload shapes.
const (
	contactPhoneCol = 0
	contactNameCol  = 1

	analyticsPhoneCol     = 0
	analyticsMessageIDCol = 1
	analyticsStatusCol    = 2
	analyticsErrorsCol    = 3
)

// Record is a normalized row. Exactly one of Contact and Analytics is set,
// matching the kind it was normalized for.
type Record struct {
	Line      int
	Contact   *domain.ContactRecord
	Analytics *domain.AnalyticsRecord
}

// Normalize maps a validated line to a typed record. Required fields (phone
// and name for contacts, phone and status for analytics) must be non-empty
// after trimming. The analytics errors column never fails a row: anything
// that is not valid JSON is wrapped as {"error": <raw>}.
//
// Link fields (campaign name, report id) are left empty; the pipeline fills
// them once the report exists.
func Normalize(line ParsedLine, kind domain.RecordKind) (Record, error) {
	switch kind {
	case domain.KindContactList:
		return normalizeContact(line)
	case domain.KindAnalyticsReport:
		return normalizeAnalytics(line)
	}
	return Record{}, ErrUnknownKind
}

func normalizeContact(line ParsedLine) (Record, error) {
	phone := field(line.Fields, contactPhoneCol)
	name := field(line.Fields, contactNameCol)
	if phone == "" {
		return Record{}, &ValidationError{Kind: RequiredFieldEmpty, Line: line.Index, Field: "phone"}
	}
	if name == "" {
		return Record{}, &ValidationError{Kind: RequiredFieldEmpty, Line: line.Index, Field: "name"}
	}
	return Record{
		Line:    line.Index,
		Contact: &domain.ContactRecord{Phone: phone, ContactName: name},
	}, nil
}

func normalizeAnalytics(line ParsedLine) (Record, error) {
	phone := field(line.Fields, analyticsPhoneCol)
	status := field(line.Fields, analyticsStatusCol)
	if phone == "" {
		return Record{}, &ValidationError{Kind: RequiredFieldEmpty, Line: line.Index, Field: "phone"}
	}
	if status == "" {
		return Record{}, &ValidationError{Kind: RequiredFieldEmpty, Line: line.Index, Field: "status"}
	}

	rec := &domain.AnalyticsRecord{Phone: phone, Status: status}
	if id := field(line.Fields, analyticsMessageIDCol); id != "" {
		rec.MessageID = &id
	}
	if raw := field(line.Fields, analyticsErrorsCol); raw != "" {
		rec.ErrorDetail = parseErrorDetail(line.Index, raw)
	}
	return Record{Line: line.Index, Analytics: rec}, nil
}

// parseErrorDetail keeps valid JSON (compacted) and wraps anything else.
func parseErrorDetail(lineNo int, raw string) json.RawMessage {
	if json.Valid([]byte(raw)) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(raw)); err == nil {
			return buf.Bytes()
		}
	}
	logger.Debug("errors column is not JSON, wrapping raw value", "line", lineNo)
	wrapped, _ := json.Marshal(map[string]string{"error": raw})
	return wrapped
}

// field returns the trimmed, unquoted value at position i, or "" when the
// line is shorter than that.
func field(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return unquote(fields[i])
}

// unquote trims whitespace and one surrounding pair of double quotes, and
// collapses doubled quotes left by spreadsheet exports.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, `""`, `"`)
	return strings.TrimSpace(s)
}
