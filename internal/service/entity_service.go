package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mocklab/mockgate/internal/config"
	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/pkg/apperrors"
	"github.com/mocklab/mockgate/internal/pkg/logger"
)

const basePathPrefix = "/api/"

type EntityRepo interface {
	ListEntities(ctx context.Context) ([]*model.Entity, error)
	CreateEntity(ctx context.Context, e *model.Entity) error
	UpdateEntity(ctx context.Context, e *model.Entity) error
	// DeleteEntity removes the entity with its endpoints and traffic.
	DeleteEntity(ctx context.Context, id string) error

	ListEndpoints(ctx context.Context, entityID string) ([]model.Endpoint, error)
	CreateEndpoint(ctx context.Context, ep *model.Endpoint) error
	UpdateEndpoint(ctx context.Context, ep *model.Endpoint) error
	DeleteEndpoint(ctx context.Context, id string) error
}

type EntityService struct {
	mu         sync.Mutex
	repo       EntityRepo
	manager    *EntityManager
	traffic    *TrafficService
	maxDelayMs int
}

func NewEntityService(manager *EntityManager, repo EntityRepo, traffic *TrafficService, maxDelayMs int) *EntityService {
	return &EntityService{repo: repo, manager: manager, traffic: traffic, maxDelayMs: maxDelayMs}
}

// Slugify lower-cases name, turns spaces into dashes and drops everything
// outside [a-z0-9-_].
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r == ' ':
			b.WriteByte('-')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NewAPIKey returns 32 random bytes, URL-safe base64 encoded.
func NewAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *EntityService) List(ctx context.Context) []*model.Entity {
	return s.manager.ListEntities()
}

func (s *EntityService) Get(ctx context.Context, id string) (*model.Entity, error) {
	e, ok := s.manager.GetEntity(id)
	if !ok {
		return nil, apperrors.NewNotFound("entity not found")
	}
	return e, nil
}

func (s *EntityService) Create(ctx context.Context, req model.CreateEntityRequest) (*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(req.Name)
	slug := Slugify(name)
	if slug == "" {
		return nil, apperrors.NewInvalidRequest("name must contain at least one letter or digit")
	}
	for _, existing := range s.manager.ListEntities() {
		if strings.EqualFold(existing.Name, name) {
			return nil, apperrors.New(apperrors.ErrConflict, fmt.Sprintf("entity %q already exists", name), nil)
		}
	}
	basePath := basePathPrefix + slug
	if s.manager.BasePathTaken(basePath) {
		return nil, apperrors.New(apperrors.ErrConflict, fmt.Sprintf("base path %s is already in use", basePath), nil)
	}

	key, err := NewAPIKey()
	if err != nil {
		return nil, err
	}
	e := &model.Entity{
		ID:         uuid.NewString(),
		Name:       name,
		BasePath:   basePath,
		APIKey:     key,
		OwnerID:    req.OwnerID,
		IsPublic:   req.IsPublic,
		SharedWith: dedupe(req.SharedWith),
		CreatedAt:  time.Now().UTC(),
	}

	if s.repo != nil {
		if err := s.repo.CreateEntity(ctx, e); err != nil {
			return nil, err
		}
	}
	s.manager.RegisterEntity(e, nil)
	logger.Info("entity created", "entity_id", e.ID, "base_path", e.BasePath)
	return e, nil
}

func (s *EntityService) Update(ctx context.Context, id string, req model.UpdateEntityRequest) (*model.Entity, error) {
	return s.mutate(ctx, id, func(e *model.Entity) error {
		if req.IsPublic != nil {
			e.IsPublic = *req.IsPublic
		}
		if req.RotateAPIKey {
			key, err := NewAPIKey()
			if err != nil {
				return err
			}
			e.APIKey = key
		}
		return nil
	})
}

// Share grants userID read access to the entity's traffic.
func (s *EntityService) Share(ctx context.Context, id, userID string) (*model.Entity, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewInvalidRequest("user_id is required")
	}
	return s.mutate(ctx, id, func(e *model.Entity) error {
		if userID == e.OwnerID {
			return apperrors.NewInvalidRequest("cannot share an entity with its owner")
		}
		if !slices.Contains(e.SharedWith, userID) {
			e.SharedWith = append(e.SharedWith, userID)
		}
		return nil
	})
}

func (s *EntityService) Unshare(ctx context.Context, id, userID string) (*model.Entity, error) {
	return s.mutate(ctx, id, func(e *model.Entity) error {
		e.SharedWith = slices.DeleteFunc(e.SharedWith, func(u string) bool { return u == userID })
		return nil
	})
}

// mutate applies fn to a copy of the entity, persists it and swaps it in.
func (s *EntityService) mutate(ctx context.Context, id string, fn func(e *model.Entity) error) (*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.manager.GetEntity(id)
	if !ok {
		return nil, apperrors.NewNotFound("entity not found")
	}
	next := *current
	next.SharedWith = slices.Clone(current.SharedWith)
	if err := fn(&next); err != nil {
		return nil, err
	}

	if s.repo != nil {
		if err := s.repo.UpdateEntity(ctx, &next); err != nil {
			return nil, err
		}
	}
	s.manager.ReplaceEntity(&next)
	return &next, nil
}

// Delete removes the entity, its endpoints, its traffic and its live
// subscribers.
func (s *EntityService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.manager.GetEntity(id); !ok {
		return apperrors.NewNotFound("entity not found")
	}
	if s.repo != nil {
		if err := s.repo.DeleteEntity(ctx, id); err != nil {
			return err
		}
	}
	s.manager.RemoveEntity(id)
	if s.traffic != nil {
		if err := s.traffic.Forget(ctx, id); err != nil {
			logger.LogError(ctx, err, "failed to clear traffic of deleted entity", "entity_id", id)
		}
	}
	logger.Info("entity deleted", "entity_id", id)
	return nil
}

// Bootstrap loads stored entities into the registry, then creates the seed
// entities from configuration that do not exist yet.
func (s *EntityService) Bootstrap(ctx context.Context, seeds []config.EntityConfig) error {
	if s.repo != nil {
		entities, err := s.repo.ListEntities(ctx)
		if err != nil {
			return fmt.Errorf("load entities: %w", err)
		}
		for _, e := range entities {
			eps, err := s.repo.ListEndpoints(ctx, e.ID)
			if err != nil {
				return fmt.Errorf("load endpoints of %s: %w", e.ID, err)
			}
			s.manager.RegisterEntity(e, s.compileAll(eps))
		}
	}

	for _, seed := range seeds {
		if err := s.seed(ctx, seed); err != nil {
			return fmt.Errorf("seed entity %q: %w", seed.Name, err)
		}
	}
	return nil
}

func (s *EntityService) compileAll(eps []model.Endpoint) []*EndpointSnapshot {
	snaps := make([]*EndpointSnapshot, 0, len(eps))
	for _, ep := range eps {
		snap, err := CompileEndpoint(ep, s.maxDelayMs)
		if err != nil {
			logger.Warn("skipping stored endpoint with invalid configuration", "endpoint_id", ep.ID, "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	slices.SortStableFunc(snaps, func(a, b *EndpointSnapshot) int {
		return a.Def.Position - b.Def.Position
	})
	return snaps
}

func (s *EntityService) seed(ctx context.Context, seed config.EntityConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	basePath := basePathPrefix + Slugify(seed.Name)
	if basePath == basePathPrefix {
		return apperrors.NewInvalidConfig("seed entity needs a name", nil)
	}
	if s.manager.BasePathTaken(basePath) {
		return nil
	}

	e := &model.Entity{
		ID:         seed.ID,
		Name:       strings.TrimSpace(seed.Name),
		BasePath:   basePath,
		APIKey:     seed.APIKey,
		OwnerID:    seed.OwnerID,
		IsPublic:   seed.IsPublic,
		SharedWith: dedupe(seed.SharedWith),
		CreatedAt:  time.Now().UTC(),
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.APIKey == "" {
		key, err := NewAPIKey()
		if err != nil {
			return err
		}
		e.APIKey = key
	}

	snaps := make([]*EndpointSnapshot, 0, len(seed.Endpoints))
	for i, epCfg := range seed.Endpoints {
		ep := endpointFromConfig(e.ID, i, epCfg)
		snap, err := CompileEndpoint(ep, s.maxDelayMs)
		if err != nil {
			return fmt.Errorf("endpoint %s %s: %w", epCfg.Method, epCfg.Path, err)
		}
		snaps = append(snaps, snap)
	}

	if s.repo != nil {
		if err := s.repo.CreateEntity(ctx, e); err != nil {
			return err
		}
		for _, snap := range snaps {
			def := snap.Def
			if err := s.repo.CreateEndpoint(ctx, &def); err != nil {
				return err
			}
		}
	}
	s.manager.RegisterEntity(e, snaps)
	logger.Info("seeded entity", "entity_id", e.ID, "base_path", e.BasePath, "endpoints", len(snaps))
	return nil
}

func endpointFromConfig(entityID string, pos int, c config.EndpointConfig) model.Endpoint {
	scenarios := make([]model.Scenario, 0, len(c.Scenarios))
	for _, sc := range c.Scenarios {
		scenarios = append(scenarios, model.Scenario{
			Name:            sc.Name,
			ResponseCode:    sc.ResponseCode,
			ResponseHeaders: sc.ResponseHeaders,
			ResponseBody:    sc.ResponseBody,
			DelayMs:         sc.DelayMs,
		})
	}
	now := time.Now().UTC()
	return model.Endpoint{
		ID:                      uuid.NewString(),
		EntityID:                entityID,
		Name:                    c.Name,
		Method:                  c.Method,
		Path:                    c.Path,
		Position:                pos,
		IsActive:                true,
		Scenarios:               scenarios,
		SelectionMode:           c.SelectionMode,
		ActiveScenarioIndex:     c.ActiveScenarioIndex,
		ScenarioWeights:         c.ScenarioWeights,
		SchemaValidationEnabled: c.SchemaValidationEnabled,
		RequestSchema:           c.RequestSchema,
		CallbackEnabled:         c.CallbackEnabled,
		CallbackURL:             c.CallbackURL,
		CallbackURLField:        c.CallbackURLField,
		CallbackMethod:          c.CallbackMethod,
		CallbackPayload:         c.CallbackPayload,
		CallbackDelayMs:         c.CallbackDelayMs,
		CallbackHeaders:         c.CallbackHeaders,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

func dedupe(in []string) []string {
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
