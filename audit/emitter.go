package audit

import (
	"context"
	"sync"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/metrics"
	"github.com/tiagossm/Compia20251207-sub001/utils/id-generator/ulid"

	"github.com/gofiber/utils/v2"
	"go.uber.org/zap"
)

const (
	defaultQueueSize    = 1024
	defaultWorkers      = 2
	defaultWriteTimeout = 5 * time.Second
)

type Config struct {
	QueueSize    int           `yaml:"queue_size" mapstructure:"queue_size"`
	Workers      int           `yaml:"workers" mapstructure:"workers"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	// KafkaTopic enables the Kafka sink when a producer is configured.
	KafkaTopic string `yaml:"kafka_topic" mapstructure:"kafka_topic"`
}

// AsyncEmitter hands records to a fixed worker pool over a bounded queue.
// When the queue is full the record is dropped and logged; Emit never
// blocks the request path.
type AsyncEmitter struct {
	cfg   Config
	sinks []Sink
	log   *logger.Logger
	ids   *ulid.Generator
	now   func() time.Time

	queue chan *Record
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsyncEmitter starts the workers. Every record is written to every sink.
func NewAsyncEmitter(cfg Config, log *logger.Logger, sinks ...Sink) *AsyncEmitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	e := &AsyncEmitter{
		cfg:   cfg,
		sinks: sinks,
		log:   log,
		ids:   ulid.NewGenerator(nil),
		now:   time.Now,
		queue: make(chan *Record, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.work()
	}
	return e
}

func (e *AsyncEmitter) Emit(ctx context.Context, entry Entry) {
	rec := e.record(entry)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.drop(ctx, rec, "emitter stopped")
		return
	}
	select {
	case e.queue <- rec:
		metrics.AuditQueueDepth.Set(float64(len(e.queue)))
	default:
		e.drop(ctx, rec, "queue full")
	}
}

// record copies every string and the organization id, so the record
// outlives request-scoped buffers handed in by handlers.
func (e *AsyncEmitter) record(entry Entry) *Record {
	now := e.now().UTC()
	rec := &Record{
		ID:          e.ids.At(now).String(),
		ActorID:     utils.CopyString(entry.ActorID),
		Action:      utils.CopyString(entry.Action),
		Description: utils.CopyString(entry.Description),
		TargetType:  utils.CopyString(entry.TargetType),
		TargetID:    utils.CopyString(entry.TargetID),
		Metadata:    detachMetadata(entry.Metadata),
		IPAddress:   utils.CopyString(entry.Meta.IPAddress),
		UserAgent:   utils.CopyString(truncateUTF8(entry.Meta.UserAgent, maxUserAgent)),
		CreatedAt:   now,
	}
	if entry.OrganizationID != nil {
		org := *entry.OrganizationID
		rec.OrganizationID = &org
	}
	return rec
}

func detachMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			v = utils.CopyString(s)
		}
		out[utils.CopyString(k)] = v
	}
	return out
}

func (e *AsyncEmitter) drop(ctx context.Context, rec *Record, reason string) {
	metrics.AuditDroppedTotal.Inc()
	e.log.WithContext(ctx).Warn("audit record dropped",
		zap.String("reason", reason),
		zap.String("action", rec.Action),
		zap.String("actor_id", rec.ActorID),
		zap.String("audit_id", rec.ID),
	)
}

func (e *AsyncEmitter) work() {
	defer e.wg.Done()
	for rec := range e.queue {
		metrics.AuditQueueDepth.Set(float64(len(e.queue)))
		e.write(rec)
	}
}

func (e *AsyncEmitter) write(rec *Record) {
	for _, sink := range e.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.WriteTimeout)
		err := sink.Write(ctx, rec)
		cancel()
		if err != nil {
			metrics.AuditRecordsTotal.WithLabelValues(sink.Name(), "failed").Inc()
			e.log.Error("audit write failed",
				zap.String("sink", sink.Name()),
				zap.String("action", rec.Action),
				zap.String("audit_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		metrics.AuditRecordsTotal.WithLabelValues(sink.Name(), "written").Inc()
	}
}

// Stop refuses new entries and waits for queued ones until ctx is done.
// Entries still queued at that point are lost.
func (e *AsyncEmitter) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.log.Warn("audit drain interrupted", zap.Int("pending", len(e.queue)))
		return ctx.Err()
	}
}
