package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/pkg/apperrors"
	"github.com/mocklab/mockgate/internal/pkg/logger"
	"github.com/mocklab/mockgate/internal/schema"
)

type EndpointService struct {
	repo       EntityRepo
	manager    *EntityManager
	maxDelayMs int
}

func NewEndpointService(manager *EntityManager, repo EntityRepo, maxDelayMs int) *EndpointService {
	return &EndpointService{repo: repo, manager: manager, maxDelayMs: maxDelayMs}
}

func (s *EndpointService) List(ctx context.Context, entityID string) ([]model.Endpoint, error) {
	if _, ok := s.manager.GetEntity(entityID); !ok {
		return nil, apperrors.NewNotFound("entity not found")
	}
	snaps := s.manager.Endpoints(entityID)
	out := make([]model.Endpoint, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap.Def)
	}
	return out, nil
}

func (s *EndpointService) Get(ctx context.Context, id string) (*model.Endpoint, error) {
	h, ok := s.manager.Endpoint(id)
	if !ok {
		return nil, apperrors.NewNotFound("endpoint not found")
	}
	def := h.Load().Def
	return &def, nil
}

func (s *EndpointService) Create(ctx context.Context, entityID string, req model.EndpointRequest) (*model.Endpoint, error) {
	if _, ok := s.manager.GetEntity(entityID); !ok {
		return nil, apperrors.NewNotFound("entity not found")
	}

	now := time.Now().UTC()
	ep := model.Endpoint{
		ID:        uuid.NewString(),
		EntityID:  entityID,
		Position:  s.manager.NextPosition(entityID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.Apply(&ep)

	snap, err := s.compile(ep)
	if err != nil {
		return nil, err
	}
	if s.repo != nil {
		def := snap.Def
		if err := s.repo.CreateEndpoint(ctx, &def); err != nil {
			return nil, err
		}
	}
	if !s.manager.PutEndpoint(snap) {
		return nil, apperrors.NewNotFound("entity not found")
	}
	logger.Info("endpoint created", "entity_id", entityID, "endpoint_id", ep.ID,
		"method", snap.Def.Method, "path", snap.Def.Path)
	def := snap.Def
	return &def, nil
}

// Update replaces the endpoint definition. The new configuration becomes
// visible to requests atomically; a concurrent scenario switch either lands
// before the swap or fails against the new snapshot.
func (s *EndpointService) Update(ctx context.Context, id string, req model.EndpointRequest) (*model.Endpoint, error) {
	h, ok := s.manager.Endpoint(id)
	if !ok {
		return nil, apperrors.NewNotFound("endpoint not found")
	}

	var old, snap *EndpointSnapshot
	for {
		old = h.Load()
		ep := model.Endpoint{
			ID:        old.Def.ID,
			EntityID:  old.Def.EntityID,
			Position:  old.Def.Position,
			CreatedAt: old.Def.CreatedAt,
			UpdatedAt: time.Now().UTC(),
		}
		req.Apply(&ep)

		var err error
		snap, err = s.compile(ep)
		if err != nil {
			return nil, err
		}
		if h.replace(old, snap) {
			break
		}
	}

	if s.repo != nil {
		def := snap.Def
		if err := s.repo.UpdateEndpoint(ctx, &def); err != nil {
			// 回滚，除非期间又有新的变更
			h.replace(snap, old)
			return nil, err
		}
	}
	def := snap.Def
	return &def, nil
}

func (s *EndpointService) Delete(ctx context.Context, id string) error {
	if _, ok := s.manager.Endpoint(id); !ok {
		return apperrors.NewNotFound("endpoint not found")
	}
	if s.repo != nil {
		if err := s.repo.DeleteEndpoint(ctx, id); err != nil {
			return err
		}
	}
	s.manager.RemoveEndpoint(id)
	return nil
}

// SwitchScenario makes scenario index active for a fixed-mode endpoint.
// Requests in flight keep the snapshot they already loaded.
func (s *EndpointService) SwitchScenario(ctx context.Context, id string, index int) (*model.SwitchScenarioResponse, error) {
	h, ok := s.manager.Endpoint(id)
	if !ok {
		return nil, apperrors.NewNotFound("endpoint not found")
	}
	snap, err := h.SwitchScenario(index)
	if err != nil {
		return nil, err
	}
	if s.repo != nil {
		def := snap.Def
		def.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateEndpoint(ctx, &def); err != nil {
			logger.LogError(ctx, err, "failed to persist scenario switch", "endpoint_id", id)
		}
	}
	logger.Info("scenario switched", "endpoint_id", id, "index", index, "scenario", snap.Def.Scenarios[index].Name)
	return &model.SwitchScenarioResponse{
		EndpointID:  id,
		ActiveIndex: index,
		Scenario:    snap.Def.Scenarios[index].Name,
	}, nil
}

// compile rejects schemas that do not compile, then builds the snapshot.
func (s *EndpointService) compile(ep model.Endpoint) (*EndpointSnapshot, error) {
	if ep.SchemaValidationEnabled {
		if strings.TrimSpace(ep.RequestSchema) == "" {
			return nil, apperrors.NewInvalidConfig("schema validation is enabled but request_schema is empty", nil)
		}
		if err := schema.Check(ep.RequestSchema); err != nil {
			return nil, apperrors.NewInvalidConfig("request_schema is not a valid JSON Schema", err)
		}
	}
	return CompileEndpoint(ep, s.maxDelayMs)
}
