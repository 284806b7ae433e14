package service

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/mocklab/mockgate/internal/config"
	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/routing"
)

type entityState struct {
	entity  *model.Entity
	handles []*EndpointHandle
	table   *routing.Table[*EndpointHandle]
	limiter *rate.Limiter
}

// EntityManager 内存注册表: entity、endpoint 句柄、路由表和限流器
type EntityManager struct {
	mu        sync.RWMutex
	byID      map[string]*entityState
	byBase    map[string]string // base path -> entity id
	endpoints map[string]*EndpointHandle
	owner     map[string]string // endpoint id -> entity id
	rate      config.RateConfig
}

func NewEntityManager(rateCfg config.RateConfig) *EntityManager {
	return &EntityManager{
		byID:      make(map[string]*entityState),
		byBase:    make(map[string]string),
		endpoints: make(map[string]*EndpointHandle),
		owner:     make(map[string]string),
		rate:      rateCfg,
	}
}

func (m *EntityManager) newLimiter() *rate.Limiter {
	limit := rate.Limit(m.rate.QPS)
	if m.rate.QPS <= 0 {
		limit = rate.Inf
	}
	burst := m.rate.Burst
	if burst <= 0 {
		burst = max(1, int(m.rate.QPS))
	}
	return rate.NewLimiter(limit, burst)
}

// RegisterEntity adds or replaces e with the given endpoint snapshots, which
// must already be in declaration order.
func (m *EntityManager) RegisterEntity(e *model.Entity, snaps []*EndpointSnapshot) {
	if e == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dropLocked(e.ID)

	st := &entityState{entity: e, limiter: m.newLimiter()}
	for _, snap := range snaps {
		h := newEndpointHandle(snap)
		st.handles = append(st.handles, h)
		m.endpoints[h.id] = h
		m.owner[h.id] = e.ID
	}
	st.table = routing.NewTable(st.handles)
	m.byID[e.ID] = st
	m.byBase[e.BasePath] = e.ID
}

// ReplaceEntity swaps the entity record and keeps its endpoints.
func (m *EntityManager) ReplaceEntity(e *model.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.byID[e.ID]
	if !ok {
		return
	}
	if st.entity.BasePath != e.BasePath {
		delete(m.byBase, st.entity.BasePath)
		m.byBase[e.BasePath] = e.ID
	}
	next := *st
	next.entity = e
	m.byID[e.ID] = &next
}

func (m *EntityManager) RemoveEntity(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked(id)
}

func (m *EntityManager) dropLocked(id string) {
	st, ok := m.byID[id]
	if !ok {
		return
	}
	for _, h := range st.handles {
		delete(m.endpoints, h.id)
		delete(m.owner, h.id)
	}
	delete(m.byBase, st.entity.BasePath)
	delete(m.byID, id)
}

func (m *EntityManager) GetEntity(id string) (*model.Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return st.entity, true
}

func (m *EntityManager) ListEntities() []*model.Entity {
	m.mu.RLock()
	out := make([]*model.Entity, 0, len(m.byID))
	for _, st := range m.byID {
		out = append(out, st.entity)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// BasePathTaken reports whether another entity already owns basePath.
func (m *EntityManager) BasePathTaken(basePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byBase[basePath]
	return ok
}

// Resolve finds the entity whose base path is the longest segment-aligned
// prefix of path, and returns the endpoint-relative remainder.
func (m *EntityManager) Resolve(path string) (*model.Entity, string, bool) {
	path = "/" + strings.TrimLeft(path, "/")

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best     *entityState
		bestBase string
	)
	for base, id := range m.byBase {
		if path != base && !strings.HasPrefix(path, base+"/") {
			continue
		}
		if len(base) > len(bestBase) {
			best, bestBase = m.byID[id], base
		}
	}
	if best == nil {
		return nil, "", false
	}
	rest := strings.TrimPrefix(path, bestBase)
	if rest == "" {
		rest = "/"
	}
	return best.entity, rest, true
}

// Table returns the route table of an entity.
func (m *EntityManager) Table(entityID string) *routing.Table[*EndpointHandle] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.byID[entityID]; ok {
		return st.table
	}
	return nil
}

func (m *EntityManager) Endpoint(id string) (*EndpointHandle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.endpoints[id]
	return h, ok
}

// EntityOf returns the entity owning endpoint id.
func (m *EntityManager) EntityOf(endpointID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.owner[endpointID]
	return id, ok
}

// Endpoints lists an entity's endpoint snapshots in declaration order.
func (m *EntityManager) Endpoints(entityID string) []*EndpointSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.byID[entityID]
	if !ok {
		return nil
	}
	out := make([]*EndpointSnapshot, 0, len(st.handles))
	for _, h := range st.handles {
		out = append(out, h.Load())
	}
	return out
}

// PutEndpoint inserts a new endpoint or swaps the configuration of an
// existing one in place, keeping its declaration position.
func (m *EntityManager) PutEndpoint(snap *EndpointSnapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.byID[snap.Def.EntityID]
	if !ok {
		return false
	}
	if h, exists := m.endpoints[snap.Def.ID]; exists {
		h.store(snap)
		return true
	}

	h := newEndpointHandle(snap)
	handles := append(slices.Clone(st.handles), h)
	sort.SliceStable(handles, func(i, j int) bool {
		return handles[i].Load().Def.Position < handles[j].Load().Def.Position
	})
	next := *st
	next.handles = handles
	next.table = routing.NewTable(handles)
	m.byID[st.entity.ID] = &next
	m.endpoints[h.id] = h
	m.owner[h.id] = st.entity.ID
	return true
}

func (m *EntityManager) RemoveEndpoint(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entityID, ok := m.owner[id]
	if !ok {
		return
	}
	delete(m.endpoints, id)
	delete(m.owner, id)

	st := m.byID[entityID]
	handles := slices.DeleteFunc(slices.Clone(st.handles), func(h *EndpointHandle) bool {
		return h.id == id
	})
	next := *st
	next.handles = handles
	next.table = routing.NewTable(handles)
	m.byID[entityID] = &next
}

// NextPosition returns the declaration position for a new endpoint.
func (m *EntityManager) NextPosition(entityID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.byID[entityID]
	if !ok || len(st.handles) == 0 {
		return 0
	}
	return st.handles[len(st.handles)-1].Load().Def.Position + 1
}

// Limiter 获取 entity 的限流器
func (m *EntityManager) Limiter(entityID string) *rate.Limiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.byID[entityID]; ok {
		return st.limiter
	}
	return nil
}
