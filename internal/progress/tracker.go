// Package progress keeps per-upload batch progress in Redis so clients can
// poll an upload while it runs and shortly after it finishes.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL is how long a progress entry survives its last update.
const TTL = 24 * time.Hour

// Upload states.
const (
	StatusImporting = "importing"
	StatusCompleted = "completed"
	StatusPartial   = "partial"
)

// ErrNotFound is returned for unknown or expired report ids.
var ErrNotFound = errors.New("no progress recorded for this report")

// Progress is the polled view of one upload.
type Progress struct {
	ReportID      string    `json:"report_id"`
	Status        string    `json:"status"`
	TotalRows     int       `json:"total_rows"`
	PersistedRows int       `json:"persisted_rows"`
	TotalBatches  int       `json:"total_batches"`
	BatchesDone   int       `json:"batches_done"`
	Percent       int       `json:"percent"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Tracker stores Progress as JSON under upload:progress:<report id>. Each
// report has a single writer (the upload request), so updates are plain
// read-modify-write.
type Tracker struct {
	redis *redis.Client
	now   func() time.Time
}

// NewTracker creates a tracker on the given client.
func NewTracker(client *redis.Client) *Tracker {
	return &Tracker{redis: client, now: time.Now}
}

func key(reportID string) string {
	return fmt.Sprintf("upload:progress:%s", reportID)
}

// Start records a new upload about to write total rows in batches chunks.
func (t *Tracker) Start(ctx context.Context, reportID string, total, batches int) error {
	now := t.now().UTC()
	return t.save(ctx, &Progress{
		ReportID:     reportID,
		Status:       StatusImporting,
		TotalRows:    total,
		TotalBatches: batches,
		StartedAt:    now,
		UpdatedAt:    now,
	})
}

// BatchDone records one more committed chunk and the running row count.
func (t *Tracker) BatchDone(ctx context.Context, reportID string, persisted int) error {
	p, err := t.Get(ctx, reportID)
	if err != nil {
		return err
	}
	p.BatchesDone++
	p.PersistedRows = persisted
	p.UpdatedAt = t.now().UTC()
	return t.save(ctx, p)
}

// Finish marks the upload completed, or partial when failure is non-nil.
func (t *Tracker) Finish(ctx context.Context, reportID string, persisted int, failure error) error {
	p, err := t.Get(ctx, reportID)
	if err != nil {
		return err
	}
	p.PersistedRows = persisted
	p.Status = StatusCompleted
	if failure != nil {
		p.Status = StatusPartial
		p.Error = failure.Error()
	}
	p.UpdatedAt = t.now().UTC()
	return t.save(ctx, p)
}

// Get returns the stored progress or ErrNotFound.
func (t *Tracker) Get(ctx context.Context, reportID string) (*Progress, error) {
	data, err := t.redis.Get(ctx, key(reportID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress %s: %w", reportID, err)
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode progress %s: %w", reportID, err)
	}
	return &p, nil
}

func (t *Tracker) save(ctx context.Context, p *Progress) error {
	if p.TotalRows > 0 {
		p.Percent = p.PersistedRows * 100 / p.TotalRows
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := t.redis.Set(ctx, key(p.ReportID), data, TTL).Err(); err != nil {
		return fmt.Errorf("save progress %s: %w", p.ReportID, err)
	}
	return nil
}
