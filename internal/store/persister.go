package store

import (
	"context"
	"fmt"
	"time"

	"github.com/DoyleJ11/auction-backend/internal/engine"
	"github.com/DoyleJ11/auction-backend/internal/metrics"
	"go.uber.org/zap"
)

const (
	BackendGorm  = "gorm"
	BackendRedis = "redis"
)

// Open builds the gateway named by backend.
func Open(backend, databaseURL, redisURL, namespace string) (Gateway, error) {
	switch backend {
	case "", BackendGorm:
		return OpenGorm(databaseURL)
	case BackendRedis:
		return OpenRedis(redisURL, namespace)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

const saveTimeout = 5 * time.Second

// Persister saves snapshots off the caller's goroutine. Only the latest
// pending snapshot is kept; older ones are superseded before they are
// written. Submit must be called from a single goroutine.
type Persister struct {
	gw      Gateway
	log     *zap.Logger
	metrics *metrics.Metrics
	pending chan engine.Snapshot
	saved   chan struct{}
}

func NewPersister(gw Gateway, log *zap.Logger, m *metrics.Metrics) *Persister {
	return &Persister{
		gw:      gw,
		log:     log,
		metrics: m,
		pending: make(chan engine.Snapshot, 1),
		saved:   make(chan struct{}, 1),
	}
}

// Submit queues s, replacing any snapshot not yet picked up. Never blocks.
func (p *Persister) Submit(s engine.Snapshot) {
	select {
	case <-p.pending:
	default:
	}
	p.pending <- s
}

// Run writes submitted snapshots until ctx is done, then flushes whatever
// is still pending.
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			select {
			case s := <-p.pending:
				p.save(context.Background(), s)
			default:
			}
			return nil
		case s := <-p.pending:
			p.save(ctx, s)
		}
	}
}

// Saved signals after each save attempt. Used by tests.
func (p *Persister) Saved() <-chan struct{} { return p.saved }

func (p *Persister) save(ctx context.Context, s engine.Snapshot) {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	start := time.Now()
	err := SaveSnapshot(ctx, p.gw, s)
	p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.PersistFailures.Inc()
		p.log.Error("persist snapshot", zap.Error(err))
	}

	select {
	case p.saved <- struct{}{}:
	default:
	}
}
