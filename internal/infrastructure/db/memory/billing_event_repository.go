package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfwhale/lms-core/internal/core/domain"
)

// BillingEventRepository keeps the webhook audit trail in memory.
type BillingEventRepository struct {
	mu      sync.Mutex
	records []domain.BillingEventRecord
}

func NewBillingEventRepository() *BillingEventRepository {
	return &BillingEventRepository{}
}

func (r *BillingEventRepository) Insert(_ context.Context, record *domain.BillingEventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := *record
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	r.records = append(r.records, rec)
	return nil
}

// Records returns a copy of the stored audit rows in insertion order.
func (r *BillingEventRepository) Records() []domain.BillingEventRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.BillingEventRecord, len(r.records))
	copy(out, r.records)
	return out
}

// DedupChecker is a TTL set of processed provider event ids, used when no
// Redis is configured.
type DedupChecker struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// defaultDedupTTL matches the Redis store: Stripe retries for up to three days.
const defaultDedupTTL = 72 * time.Hour

// pruneEvery bounds how often Mark sweeps expired ids.
const pruneEvery = 1024

// NewDedupChecker returns a DedupChecker; ttl <= 0 selects defaultDedupTTL.
func NewDedupChecker(ttl time.Duration) *DedupChecker {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &DedupChecker{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (d *DedupChecker) IsDuplicate(_ context.Context, provider, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.seen[provider+":"+eventID]
	if !ok {
		return false, nil
	}
	if d.now().After(exp) {
		delete(d.seen, provider+":"+eventID)
		return false, nil
	}
	return true, nil
}

func (d *DedupChecker) Mark(_ context.Context, provider, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	d.seen[provider+":"+eventID] = now.Add(d.ttl)
	if len(d.seen)%pruneEvery == 0 {
		for k, exp := range d.seen {
			if now.After(exp) {
				delete(d.seen, k)
			}
		}
	}
	return nil
}
