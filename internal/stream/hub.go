// Package stream fans traffic entries out to live subscribers of an entity.
package stream

import (
	"encoding/json"
	"sync"

	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/pkg/logger"
	"github.com/mocklab/mockgate/internal/pkg/metrics"
)

const defaultBuffer = 64

// Subscription is one attached watcher. Messages arrive on C as encoded JSON
// envelopes. C is closed when the subscription ends for any reason.
type Subscription struct {
	EntityID string
	C        <-chan []byte

	ch   chan []byte
	hub  *Hub
	once sync.Once
}

// Close detaches the subscription. It is idempotent.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub is the per-entity subscriber registry. Publish never blocks: a
// subscriber whose buffer is full is dropped.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

func (h *Hub) Subscribe(entityID string) *Subscription {
	ch := make(chan []byte, h.buffer)
	s := &Subscription{EntityID: entityID, C: ch, ch: ch, hub: h}

	h.mu.Lock()
	set, ok := h.subs[entityID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[entityID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	metrics.LiveSubscribers.Inc()
	return s
}

// Publish sends log to every subscriber of its entity.
func (h *Hub) Publish(log *model.TrafficLog) {
	msg, err := json.Marshal(model.LiveMessage{Type: "new_log", Log: log})
	if err != nil {
		logger.Error("encode live message failed", "error", err, "entity_id", log.EntityID)
		return
	}
	h.PublishRaw(log.EntityID, msg)
}

// PublishRaw sends a pre-encoded message.
func (h *Hub) PublishRaw(entityID string, msg []byte) {
	var slow []*Subscription

	h.mu.RLock()
	for s := range h.subs[entityID] {
		select {
		case s.ch <- msg:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		logger.Warn("dropping slow live subscriber", "entity_id", entityID)
		metrics.BroadcastDrops.Inc()
		h.remove(s)
	}
}

// Count returns the number of subscribers attached to entityID.
func (h *Hub) Count(entityID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[entityID])
}

// CloseEntity drops every subscriber of entityID, used when the entity is
// deleted.
func (h *Hub) CloseEntity(entityID string) {
	h.mu.Lock()
	set := h.subs[entityID]
	delete(h.subs, entityID)
	h.mu.Unlock()

	for s := range set {
		s.shutdown()
	}
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for s := range set {
			s.shutdown()
		}
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	if set, ok := h.subs[s.EntityID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.EntityID)
		}
	}
	h.mu.Unlock()
	s.shutdown()
}

func (s *Subscription) shutdown() {
	s.once.Do(func() {
		close(s.ch)
		metrics.LiveSubscribers.Dec()
	})
}
