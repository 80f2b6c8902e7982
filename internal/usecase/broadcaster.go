package usecase

import (
	"context"
	"sync"
	"time"

	"MarketScreener/internal/domain/models"
	"MarketScreener/internal/domain/repository"
	applogger "MarketScreener/pkg/logger"
	"MarketScreener/pkg/metrics"
)

// Broadcaster hands snapshots to every transport from its own goroutine.
// Only the newest pending snapshot is kept; Publish never blocks and drops
// snapshots until Start has been called.
type Broadcaster struct {
	transports []repository.SnapshotPublisher
	timeout    time.Duration
	metrics    repository.Metrics
	logger     *applogger.Logger

	pending chan *models.Snapshot
	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

func NewBroadcaster(logger *applogger.Logger, m repository.Metrics, timeout time.Duration, transports ...repository.SnapshotPublisher) *Broadcaster {
	if m == nil {
		m = metrics.Noop{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Broadcaster{
		transports: transports,
		timeout:    timeout,
		metrics:    m,
		logger:     logger,
		pending:    make(chan *models.Snapshot, 1),
	}
}

func (b *Broadcaster) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.loop(b.stop, b.done)
}

// Stop waits for the in-flight snapshot to be delivered.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	close(b.stop)
	done := b.done
	b.mu.Unlock()
	<-done
}

func (b *Broadcaster) Publish(snap *models.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started || snap == nil {
		return
	}
	for {
		select {
		case b.pending <- snap:
			return
		default:
		}
		select {
		case <-b.pending:
		default:
		}
	}
}

func (b *Broadcaster) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case snap := <-b.pending:
			b.deliver(snap)
		}
	}
}

func (b *Broadcaster) deliver(snap *models.Snapshot) {
	for _, t := range b.transports {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		err := t.Publish(ctx, snap)
		cancel()
		b.metrics.RecordPublish(t.Name(), err)
		if err != nil {
			b.logger.Warn("Snapshot publish failed",
				applogger.String("transport", t.Name()),
				applogger.Uint64("seq", snap.Seq),
				applogger.Error(err))
		}
	}
}
