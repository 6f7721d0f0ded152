package domain

import (
	"encoding/json"
	"time"
)

// RecordKind distinguishes the two upload flavours. The value doubles as the
// URL segment and the kind column of campaign_reports.
type RecordKind string

const (
	// KindContactList is an outbound contact list ("difusión"): phone,name.
	KindContactList RecordKind = "difusion"
	// KindAnalyticsReport is a provider delivery report ("analítica"):
	// phone,message_id,status,errors[,...].
	KindAnalyticsReport RecordKind = "analitica"
)

// Valid reports whether k is one of the known kinds.
func (k RecordKind) Valid() bool {
	return k == KindContactList || k == KindAnalyticsReport
}

// ParseRecordKind maps a URL segment to a kind. The second result is false
// for unknown values.
func ParseRecordKind(s string) (RecordKind, bool) {
	k := RecordKind(s)
	return k, k.Valid()
}

// CampaignReport is the header row written once per successful upload.
type CampaignReport struct {
	ReportID     string     `json:"report_id" db:"report_id"`
	Kind         RecordKind `json:"kind" db:"kind"`
	CampaignName string     `json:"campaign_name" db:"campaign_name"`
	TotalRecords int        `json:"total_records" db:"total_records"`
	UploadedAt   time.Time  `json:"uploaded_at" db:"uploaded_at"`
	Description  string     `json:"description,omitempty" db:"description"`
}

// ContactRecord is one row of a contact list. It references its report by
// campaign name.
type ContactRecord struct {
	CampaignName string `json:"campaign" db:"campaign_name"`
	Phone        string `json:"phone" db:"phone"`
	ContactName  string `json:"name" db:"contact_name"`
}

// AnalyticsRecord is one row of a delivery report. It references its report
// by generated report id.
type AnalyticsRecord struct {
	ReportID    string          `json:"report_id" db:"report_id"`
	Phone       string          `json:"phone_number" db:"phone_number"`
	Status      string          `json:"status" db:"status"`
	MessageID   *string         `json:"message_id" db:"message_id"`
	ErrorDetail json.RawMessage `json:"errors,omitempty" db:"errors"`
}
