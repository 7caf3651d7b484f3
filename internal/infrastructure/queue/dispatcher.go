package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfwhale/lms-core/internal/api/metrics"
	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
	awardTimeout   = 5 * time.Second
)

// ErrStopped is returned by Enqueue once the dispatcher is shutting down.
var ErrStopped = errors.New("xp dispatcher stopped")

// Awarder applies a single XP award.
type Awarder interface {
	AddXP(ctx context.Context, userID string, amount int64) (domain.XPAward, error)
}

// Dispatcher routes XP awards to a fixed set of workers using consistent
// hashing on the user id, guaranteeing per-user award ordering.
type Dispatcher struct {
	workers []chan ports.XPAwardInput
	ledger  Awarder
	log     zerolog.Logger
	wg      sync.WaitGroup

	// mu is held for reading while sending so Stop never closes a
	// channel under a blocked sender.
	mu       sync.RWMutex
	quit     chan struct{}
	stopOnce sync.Once
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, ledger Awarder, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.XPAwardInput, numWorkers),
		ledger:  ledger,
		log:     log,
		quit:    make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.XPAwardInput, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Cancelling ctx calls Stop: queued
// awards are still applied before the workers exit.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(i, ch)
	}
	go func() {
		select {
		case <-ctx.Done():
			d.Stop()
		case <-d.quit:
		}
	}()
}

// Stop rejects further awards and closes the worker queues. It is safe to
// call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.quit)
		d.mu.Lock()
		defer d.mu.Unlock()
		for _, ch := range d.workers {
			close(ch)
		}
	})
}

// Wait blocks until every worker has drained its queue and exited.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Enqueue sends an award to the worker responsible for its user. It blocks
// while that worker's buffer is full and gives up when ctx is done.
func (d *Dispatcher) Enqueue(ctx context.Context, award ports.XPAwardInput) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	select {
	case <-d.quit:
		return ErrStopped
	default:
	}

	idx := d.shardIndex(award.UserID)
	select {
	case d.workers[idx] <- award:
		metrics.XPQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	case <-d.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueBatch enqueues awards in order, preserving per-user ordering.
// It returns how many were accepted before any error.
func (d *Dispatcher) EnqueueBatch(ctx context.Context, awards []ports.XPAwardInput) (int, error) {
	for i, a := range awards {
		if err := d.Enqueue(ctx, a); err != nil {
			return i, err
		}
	}
	return len(awards), nil
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

// runWorker applies awards until its queue is closed and empty. Each award
// gets its own deadline so a drain after shutdown is still bounded.
func (d *Dispatcher) runWorker(id int, ch <-chan ports.XPAwardInput) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for award := range ch {
		metrics.XPQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

		ctx, cancel := context.WithTimeout(context.Background(), awardTimeout)
		res, err := d.ledger.AddXP(ctx, award.UserID, award.Amount)
		cancel()
		if err != nil {
			metrics.XPAwardErrorsTotal.Inc()
			d.log.Error().Err(err).
				Str("user_id", award.UserID).
				Str("reason", award.Reason).
				Int("worker_id", id).
				Msg("xp award failed")
			continue
		}
		metrics.XPAwardedTotal.WithLabelValues("batch").Add(float64(award.Amount))
		if res.LeveledUp {
			metrics.LevelUpsTotal.Inc()
		}
	}
}
