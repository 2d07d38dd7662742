package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/vi-monitor/internal/database"
	"github.com/rickgao/vi-monitor/internal/dispatcher"
	"github.com/rickgao/vi-monitor/internal/metrics"
)

// Journal is a dispatcher sink that persists VI events and forwarded ticks
// in batches. OnVI and OnTick never block; rows are queued and written by a
// background goroutine.
type Journal struct {
	cfg     Config
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	queue  *Queue[entry]
	notify chan struct{}

	// Serializes flushes between the loop and Stop.
	flushMu sync.Mutex

	// Lifecycle
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

// New creates a Journal writing to store.
func New(cfg Config, store Store, m *metrics.Metrics, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &Journal{
		cfg:     cfg,
		store:   store,
		metrics: m,
		logger:  logger.With("component", "journal"),
		queue:   NewQueue[entry](cfg.BatchSize*2, cfg.BufferSize),
		notify:  make(chan struct{}, 1),
	}
}

// Start begins flushing queued rows.
func (j *Journal) Start(ctx context.Context) error {
	ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go j.flushLoop(ctx)

	j.logger.Info("journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop halts the flush loop, writes whatever is still queued and closes the
// store.
func (j *Journal) Stop(ctx context.Context) error {
	j.logger.Info("stopping journal")
	j.queue.Close()

	if j.cancel != nil {
		j.cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		j.logger.Warn("journal stop timed out")
	}

	j.flushAll(ctx)

	if err := j.store.Close(); err != nil {
		j.logger.Error("close journal store", "error", err)
		return err
	}
	j.logger.Info("journal stopped", "queued", j.queue.Len())
	return nil
}

// OnVI queues a VI event row.
func (j *Journal) OnVI(u dispatcher.VIUpdate) {
	ev := u.Event
	j.enqueue(entry{vi: &VIRow{
		ID:              uuid.New(),
		SessionID:       u.SessionID,
		Code:            ev.Instrument.Code,
		Exchange:        ev.ExchangeName,
		Status:          int(ev.Status),
		Action:          u.Transition.Action.String(),
		TriggerPrice:    ev.TriggerPrice,
		StaticRefPrice:  ev.StaticRefPrice,
		DynamicRefPrice: ev.DynamicRefPrice,
		TriggerTime:     ev.Time,
		ReceivedAt:      u.ReceivedAt,
	}})
}

// OnTick queues a tick row.
func (j *Journal) OnTick(u dispatcher.TickUpdate) {
	ev := u.Event
	j.enqueue(entry{tick: &TickRow{
		ID:         uuid.New(),
		SessionID:  u.SessionID,
		Code:       ev.Code,
		TrCd:       ev.TrCd,
		Price:      ev.Price,
		Change:     ev.Change,
		ChangeRate: ev.Rate,
		Volume:     ev.Volume,
		Value:      ev.Value,
		Bid:        ev.Bid,
		Offer:      ev.Ask,
		ExecTime:   ev.Time,
		VIStatus:   int(u.Record.Status),
		ReceivedAt: u.ReceivedAt,
	}})
}

// Stats returns current statistics.
func (j *Journal) Stats() Stats {
	j.mu.Lock()
	s := j.stats
	j.mu.Unlock()
	s.Queue = j.queue.Stats()
	return s
}

func (j *Journal) enqueue(e entry) {
	if !j.queue.Push(e) {
		j.metrics.JournalDropped()
		return
	}
	if j.queue.Len() >= j.cfg.BatchSize {
		select {
		case j.notify <- struct{}{}:
		default:
		}
	}
}

func (j *Journal) flushLoop(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.flushAll(ctx)
		case <-j.notify:
			j.flushAll(ctx)
		}
	}
}

// flushAll writes queued rows in batches until the queue is empty. A failed
// batch is logged and discarded.
func (j *Journal) flushAll(ctx context.Context) {
	// Final flushes run after ctx is cancelled; writes must still go through.
	ctx = context.WithoutCancel(ctx)

	j.flushMu.Lock()
	defer j.flushMu.Unlock()

	for {
		batch := j.queue.DrainTo(j.cfg.BatchSize)
		if len(batch) == 0 {
			return
		}
		j.flush(ctx, batch)
	}
}

func (j *Journal) flush(ctx context.Context, batch []entry) {
	var vis []VIRow
	var ticks []TickRow
	for _, e := range batch {
		switch {
		case e.vi != nil:
			vis = append(vis, *e.vi)
		case e.tick != nil:
			ticks = append(ticks, *e.tick)
		}
	}

	start := time.Now()
	viOK := j.insert(database.TableVIEvents, len(vis), func() error { return j.store.InsertVIEvents(ctx, vis) })
	tickOK := j.insert(database.TableTicks, len(ticks), func() error { return j.store.InsertTicks(ctx, ticks) })

	j.mu.Lock()
	j.stats.Flushes++
	if viOK {
		j.stats.VIRows += int64(len(vis))
	} else {
		j.stats.Errors++
	}
	if tickOK {
		j.stats.Ticks += int64(len(ticks))
	} else {
		j.stats.Errors++
	}
	j.mu.Unlock()

	j.logger.Debug("journal flushed",
		"vi_events", len(vis),
		"ticks", len(ticks),
		"duration", time.Since(start),
	)
}

func (j *Journal) insert(table string, n int, write func() error) bool {
	if n == 0 {
		return true
	}
	if err := write(); err != nil {
		j.logger.Error("journal insert failed", "table", table, "error", err, "count", n)
		j.metrics.JournalFlushError()
		return false
	}
	j.metrics.JournalRows(table, n)
	return true
}
