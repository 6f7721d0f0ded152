package ingest

import (
	"math"
	"strings"

	"github.com/ignite/campaign-ingest/internal/domain"
)

// Aggregate buckets analytics records by delivery status. Statuses are
// compared after removing quote characters, trimming and lower-casing.
// Unknown statuses count toward Total only, so the four buckets may sum to
// less than Total.
func Aggregate(records []domain.AnalyticsRecord) domain.StatusMetrics {
	counts := make(map[string]int, len(domain.TrackedStatuses))
	for _, r := range records {
		counts[NormalizeStatus(r.Status)]++
	}

	total := len(records)
	metric := func(status string) domain.CategoryMetric {
		return domain.CategoryMetric{Count: counts[status], Percentage: percentage(counts[status], total)}
	}
	return domain.StatusMetrics{
		Total:     total,
		Read:      metric(domain.StatusRead),
		Delivered: metric(domain.StatusDelivered),
		Sent:      metric(domain.StatusSent),
		Failed:    metric(domain.StatusFailed),
	}
}

// NormalizeStatus strips quoting noise from a provider status value.
func NormalizeStatus(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	return strings.ToLower(strings.TrimSpace(s))
}

func percentage(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(count) / float64(total)))
}
