package service

import (
	"context"
	"sync"
	"time"

	"github.com/mocklab/mockgate/internal/config"
	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/pkg/logger"
	"github.com/mocklab/mockgate/internal/pkg/metrics"
)

// TrafficSink receives every recorded entry off the request path.
type TrafficSink interface {
	Insert(ctx context.Context, entry *model.TrafficLog) error
}

// TrafficRepo is a sink that can be read back and cleared.
type TrafficRepo interface {
	TrafficSink
	List(ctx context.Context, filter model.TrafficFilter) ([]*model.TrafficLog, error)
	DeleteByEntity(ctx context.Context, entityID string) error
}

// Publisher receives every recorded entry for live fan-out.
type Publisher interface {
	Publish(entry *model.TrafficLog)
	CloseEntity(entityID string)
}

// TrafficService 记录 mock 流量: 内存环形缓冲 + 实时广播 + 异步持久化
type TrafficService struct {
	buffer    *trafficBuffer
	publisher Publisher
	sinks     []TrafficSink
	repos     []TrafficRepo
	cfg       config.TrafficConfig

	logChan chan queuedLog
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool

	// epochs counts clears per entity; queued entries from an older epoch
	// are not persisted. persistMu orders inserts against repo deletes.
	epochMu   sync.RWMutex
	epochs    map[string]uint64
	persistMu sync.Mutex
}

type queuedLog struct {
	entry *model.TrafficLog
	epoch uint64
}

// NewTrafficService starts the persistence consumer. sinks are written in
// order; reads use the first TrafficRepo that answers.
func NewTrafficService(cfg config.TrafficConfig, publisher Publisher, sinks ...TrafficSink) *TrafficService {
	if cfg.MaxEntriesPerEntity <= 0 {
		cfg.MaxEntriesPerEntity = 1000
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 100
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = cfg.MaxEntriesPerEntity
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}

	svc := &TrafficService{
		buffer:    newTrafficBuffer(cfg.MaxEntriesPerEntity),
		publisher: publisher,
		cfg:       cfg,
		logChan:   make(chan queuedLog, cfg.QueueSize),
		done:      make(chan struct{}),
		epochs:    make(map[string]uint64),
	}
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		svc.sinks = append(svc.sinks, sink)
		if r, ok := sink.(TrafficRepo); ok {
			svc.repos = append(svc.repos, r)
		}
	}

	go svc.processLogs()
	return svc
}

// Record stores entry and broadcasts it. It never blocks on subscribers or
// storage.
func (s *TrafficService) Record(entry *model.TrafficLog) {
	if entry == nil {
		return
	}
	epoch := s.epoch(entry.EntityID)
	s.buffer.Add(entry)
	if s.publisher != nil {
		s.publisher.Publish(entry)
	}

	if len(s.sinks) == 0 {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.logChan <- queuedLog{entry: entry, epoch: epoch}:
	default:
		metrics.TrafficPersistDrops.Inc()
		logger.Warn("traffic write queue full, entry not persisted", "entity_id", entry.EntityID, "id", entry.ID)
	}
}

// List returns entries newest first.
func (s *TrafficService) List(ctx context.Context, filter model.TrafficFilter) ([]*model.TrafficLog, error) {
	filter.Limit = s.clampLimit(filter.Limit)

	for _, r := range s.repos {
		records, err := r.List(ctx, filter)
		if err == nil {
			return records, nil
		}
		logger.LogError(ctx, err, "traffic repo list failed, falling back", "entity_id", filter.EntityID)
	}
	return s.buffer.List(filter), nil
}

func (s *TrafficService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	return min(limit, s.cfg.MaxLimit)
}

// Clear deletes every entry of an entity, including entries still waiting
// in the write queue.
func (s *TrafficService) Clear(ctx context.Context, entityID string) error {
	s.epochMu.Lock()
	s.epochs[entityID]++
	s.epochMu.Unlock()

	s.buffer.Clear(entityID)

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	for _, r := range s.repos {
		if err := r.DeleteByEntity(ctx, entityID); err != nil {
			return err
		}
	}
	return nil
}

// Forget drops an entity entirely: entries and live subscribers.
func (s *TrafficService) Forget(ctx context.Context, entityID string) error {
	if s.publisher != nil {
		s.publisher.CloseEntity(entityID)
	}
	return s.Clear(ctx, entityID)
}

func (s *TrafficService) epoch(entityID string) uint64 {
	s.epochMu.RLock()
	defer s.epochMu.RUnlock()
	return s.epochs[entityID]
}

func (s *TrafficService) processLogs() {
	defer close(s.done)
	for q := range s.logChan {
		s.persist(q)
	}
}

func (s *TrafficService) persist(q queuedLog) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	entry := q.entry
	if q.epoch != s.epoch(entry.EntityID) {
		// cleared after it was recorded
		return
	}
	for _, sink := range s.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := sink.Insert(ctx, entry); err != nil {
			logger.Error("failed to persist traffic entry", "error", err, "entity_id", entry.EntityID, "id", entry.ID)
		}
		cancel()
	}
}

// Close flushes queued entries and stops the consumer.
func (s *TrafficService) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.logChan)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type trafficRing struct {
	records   []*model.TrafficLog
	nextIndex int
}

// trafficBuffer keeps the newest maxSize entries of every entity.
type trafficBuffer struct {
	mu      sync.Mutex
	maxSize int
	rings   map[string]*trafficRing
}

func newTrafficBuffer(maxSize int) *trafficBuffer {
	return &trafficBuffer{maxSize: maxSize, rings: make(map[string]*trafficRing)}
}

func (b *trafficBuffer) Add(entry *model.TrafficLog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rings[entry.EntityID]
	if !ok {
		r = &trafficRing{records: make([]*model.TrafficLog, 0, min(b.maxSize, 64))}
		b.rings[entry.EntityID] = r
	}
	if len(r.records) < b.maxSize {
		r.records = append(r.records, entry)
		return
	}
	r.records[r.nextIndex] = entry
	r.nextIndex = (r.nextIndex + 1) % b.maxSize
}

func (b *trafficBuffer) List(filter model.TrafficFilter) []*model.TrafficLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rings[filter.EntityID]
	if !ok {
		return []*model.TrafficLog{}
	}
	limit := filter.Limit
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.TrafficLog, 0, min(limit, len(r.records)))
	total := len(r.records)
	for i := 0; i < total; i++ {
		// newest entry sits just before nextIndex once the ring has wrapped
		idx := (r.nextIndex + total - 1 - i) % total
		entry := r.records[idx]
		if filter.EndpointID != "" && entry.EndpointID != filter.EndpointID {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}

func (b *trafficBuffer) Clear(entityID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rings, entityID)
}

func (b *trafficBuffer) Len(entityID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.rings[entityID]; ok {
		return len(r.records)
	}
	return 0
}
