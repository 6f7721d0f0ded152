package domain

// Delivery status vocabulary used for analytics bucketing. Any other value
// supplied by the provider is treated as unknown.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// TrackedStatuses lists the statuses that get their own bucket.
var TrackedStatuses = []string{StatusRead, StatusDelivered, StatusSent, StatusFailed}

// CategoryMetric is the count and rounded share (0-100) of one status.
type CategoryMetric struct {
	Count      int `json:"count"`
	Percentage int `json:"percentage"`
}

// StatusMetrics summarises a delivery report. It is derived on demand and
// never persisted.
type StatusMetrics struct {
	Total     int            `json:"total"`
	Read      CategoryMetric `json:"read"`
	Delivered CategoryMetric `json:"delivered"`
	Sent      CategoryMetric `json:"sent"`
	Failed    CategoryMetric `json:"failed"`
}
