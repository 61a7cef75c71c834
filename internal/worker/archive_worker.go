// Package worker runs background jobs: archiving realtime row changes to ClickHouse.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/realtime"
	"github.com/Arrogantx/slapper/internal/retry"
)

// ArchivedTables are the tables whose changes are archived
var ArchivedTables = []string{
	models.TableAccessRequests,
	models.TableUserProfiles,
	models.TableChatMessages,
}

// Subscriber opens realtime feeds
type Subscriber interface {
	Subscribe(ctx context.Context, tables ...string) (realtime.Feed, error)
}

// Archive stores batches of change events
type Archive interface {
	AppendBatch(ctx context.Context, events []*models.ChangeEvent) error
}

// ArchiveWorkerConfig holds configuration for the archive worker
type ArchiveWorkerConfig struct {
	Subscriber    Subscriber
	Archive       Archive
	BatchSize     int
	FlushInterval time.Duration
	// Retry controls flush retries; MaxAttempts <= 1 disables retrying
	Retry  *retry.RetryConfig
	Logger *logging.Logger
}

// ArchiveStats reports worker progress
type ArchiveStats struct {
	Archived  int       `json:"archived"`
	Dropped   int       `json:"dropped"`
	Resyncs   int       `json:"resyncs"`
	Pending   int       `json:"pending"`
	LastFlush time.Time `json:"lastFlush"`
	Running   bool      `json:"running"`
}

// ArchiveWorker batches row changes from the realtime feed into the archive
type ArchiveWorker struct {
	subscriber    Subscriber
	archive       Archive
	batchSize     int
	flushInterval time.Duration
	retryCfg      *retry.RetryConfig
	logger        *logging.Logger

	mu      sync.Mutex
	running bool
	feed    realtime.Feed
	buffer  []*models.ChangeEvent
	stats   ArchiveStats
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewArchiveWorker creates a new archive worker
func NewArchiveWorker(cfg *ArchiveWorkerConfig) (*ArchiveWorker, error) {
	if cfg.Subscriber == nil {
		return nil, fmt.Errorf("subscriber cannot be nil")
	}
	if cfg.Archive == nil {
		return nil, fmt.Errorf("archive cannot be nil")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	retryCfg := retry.DefaultRetryConfig()
	if cfg.Retry != nil {
		copied := *cfg.Retry
		retryCfg = &copied
	}
	if retryCfg.MaxAttempts < 1 {
		retryCfg.MaxAttempts = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &ArchiveWorker{
		subscriber:    cfg.Subscriber,
		archive:       cfg.Archive,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retryCfg:      retryCfg,
		logger:        logger.WithField("component", "archive_worker"),
	}, nil
}

// Start subscribes to every archived table and begins batching
func (w *ArchiveWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("archive worker is already running")
	}

	feed, err := w.subscriber.Subscribe(ctx, ArchivedTables...)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	w.feed = feed
	w.running = true
	w.stats.Running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	w.logger.WithFields(map[string]interface{}{
		"tables":        ArchivedTables,
		"batchSize":     w.batchSize,
		"flushInterval": w.flushInterval.String(),
	}).Info("Archive worker started")

	go w.loop(ctx, feed, w.stopCh, w.doneCh)
	return nil
}

// Stop flushes what is buffered and unsubscribes
func (w *ArchiveWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("archive worker is not running")
	}
	stopCh, doneCh, feed := w.stopCh, w.doneCh, w.feed
	w.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := feed.Close()

	w.mu.Lock()
	w.running = false
	w.stats.Running = false
	w.mu.Unlock()

	w.logger.Info("Archive worker stopped")
	return err
}

// Stats returns a snapshot of worker progress
func (w *ArchiveWorker) Stats() ArchiveStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	stats := w.stats
	stats.Pending = len(w.buffer)
	return stats
}

func (w *ArchiveWorker) loop(ctx context.Context, feed realtime.Feed, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	events := feed.Events()
	for {
		select {
		case <-stopCh:
			w.flush(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			w.flush(ctx)
		case event, ok := <-events:
			if !ok {
				w.logger.Warn("Realtime feed ended")
				w.flush(ctx)
				return
			}
			if w.add(event) {
				w.flush(ctx)
			}
		}
	}
}

// add buffers an event and reports whether the batch is full
func (w *ArchiveWorker) add(event *models.ChangeEvent) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if event.Op == models.OpResync {
		// resync markers are local to this subscriber and never archived
		w.stats.Resyncs++
		w.logger.WithField("table", event.Table).Warn("Realtime feed reconnected, events may be missing from the archive")
		return false
	}
	w.buffer = append(w.buffer, event)
	return len(w.buffer) >= w.batchSize
}

// flush writes the buffer with retries. A batch that still fails is dropped.
func (w *ArchiveWorker) flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.buffer
	w.buffer = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	result := retry.WithExponentialBackoff(logging.WithLogger(ctx, w.logger), w.retryCfg, func(ctx context.Context, attempt int) error {
		return w.archive.AppendBatch(ctx, batch)
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.LastFlush = time.Now().UTC()
	if !result.Success {
		w.stats.Dropped += len(batch)
		w.logger.WithError(result.LastError).WithFields(map[string]interface{}{
			"events":   len(batch),
			"attempts": result.Attempts,
		}).Error("Dropping change events after failed archive writes")
		return
	}
	w.stats.Archived += len(batch)
	w.logger.WithField("events", len(batch)).Debug("Archived change events")
}
