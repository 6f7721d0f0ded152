package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/campaign-ingest/internal/domain"
	"github.com/ignite/campaign-ingest/internal/service/ingest"
)

func records(statuses ...string) []domain.AnalyticsRecord {
	out := make([]domain.AnalyticsRecord, len(statuses))
	for i, s := range statuses {
		out[i] = domain.AnalyticsRecord{Phone: "+52", Status: s}
	}
	return out
}

func TestAggregate(t *testing.T) {
	m := ingest.Aggregate(records("read", "read", "delivered", "failed"))

	assert.Equal(t, 4, m.Total)
	assert.Equal(t, domain.CategoryMetric{Count: 2, Percentage: 50}, m.Read)
	assert.Equal(t, domain.CategoryMetric{Count: 1, Percentage: 25}, m.Delivered)
	assert.Equal(t, domain.CategoryMetric{Count: 1, Percentage: 25}, m.Failed)
	assert.Equal(t, domain.CategoryMetric{Count: 0, Percentage: 0}, m.Sent)
}

func TestAggregateEmpty(t *testing.T) {
	m := ingest.Aggregate(nil)

	assert.Equal(t, domain.StatusMetrics{}, m)
}

func TestAggregateUnknownStatusCountsTowardTotalOnly(t *testing.T) {
	m := ingest.Aggregate(records("read", "pending", "deleted"))

	assert.Equal(t, 3, m.Total)
	assert.Equal(t, 1, m.Read.Count)
	assert.Equal(t, 33, m.Read.Percentage)
	assert.Equal(t, 0, m.Delivered.Count+m.Sent.Count+m.Failed.Count)
}

func TestAggregateRounding(t *testing.T) {
	m := ingest.Aggregate(records("sent", "sent", "read"))

	assert.Equal(t, 67, m.Sent.Percentage)
	assert.Equal(t, 33, m.Read.Percentage)
}

func TestAggregateStatusNoise(t *testing.T) {
	noisy := ingest.Aggregate(records("\"read\"  "))
	clean := ingest.Aggregate(records("read"))

	assert.Equal(t, clean, noisy)
	assert.Equal(t, "read", ingest.NormalizeStatus(` "READ" `))
}

func TestAggregateIsRepeatable(t *testing.T) {
	in := records("read", "failed", "Delivered")

	assert.Equal(t, ingest.Aggregate(in), ingest.Aggregate(in))
}
