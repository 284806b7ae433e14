package service

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/pkg/apperrors"
	"github.com/mocklab/mockgate/internal/routing"
	"github.com/mocklab/mockgate/internal/scenario"
	"github.com/mocklab/mockgate/internal/schema"
)

var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodDelete: {},
	http.MethodPatch:  {},
}

// EndpointSnapshot is the compiled, immutable form of an endpoint. A request
// works against exactly one snapshot from match to response.
type EndpointSnapshot struct {
	Def       model.Endpoint
	Route     routing.Template
	Selection scenario.Selection
	// Schema is nil when validation is disabled. SchemaErr is set when
	// validation is enabled but the stored schema does not compile.
	Schema    *schema.Schema
	SchemaErr error
}

// CompileEndpoint validates ep and builds its snapshot. Schema compilation
// failures are kept on the snapshot rather than returned so a stored endpoint
// with a broken schema still loads; callers on the write path check the schema
// separately.
func CompileEndpoint(ep model.Endpoint, maxDelayMs int) (*EndpointSnapshot, error) {
	ep.Method = strings.ToUpper(strings.TrimSpace(ep.Method))
	if _, ok := allowedMethods[ep.Method]; !ok {
		return nil, apperrors.NewInvalidConfig(fmt.Sprintf("method %q is not supported", ep.Method), nil)
	}

	ep.Path = routing.Normalize(ep.Path)
	route, err := routing.Parse(ep.Path)
	if err != nil {
		return nil, apperrors.NewInvalidConfig("invalid path template", err)
	}

	scenarios := make([]model.Scenario, len(ep.Scenarios))
	for i, sc := range ep.Scenarios {
		if sc.ResponseCode == 0 {
			sc.ResponseCode = http.StatusOK
		}
		if sc.ResponseCode < 100 || sc.ResponseCode > 599 {
			return nil, apperrors.NewInvalidConfig(fmt.Sprintf("scenario %d: response code %d out of range", i, sc.ResponseCode), nil)
		}
		if sc.DelayMs < 0 {
			return nil, apperrors.NewInvalidConfig(fmt.Sprintf("scenario %d: negative delay", i), nil)
		}
		if maxDelayMs > 0 && sc.DelayMs > maxDelayMs {
			sc.DelayMs = maxDelayMs
		}
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("scenario-%d", i+1)
		}
		scenarios[i] = sc
	}
	ep.Scenarios = scenarios

	sel, err := scenario.Build(ep.SelectionMode, ep.ActiveScenarioIndex, ep.ScenarioWeights, len(scenarios))
	if err != nil {
		return nil, apperrors.NewInvalidConfig("invalid scenario selection", err)
	}
	ep.SelectionMode = string(sel.Mode())
	if f, ok := sel.(scenario.Fixed); ok {
		ep.ActiveScenarioIndex = f.Index
	}

	if ep.CallbackEnabled {
		if strings.TrimSpace(ep.CallbackURL) == "" && strings.TrimSpace(ep.CallbackURLField) == "" {
			return nil, apperrors.NewInvalidConfig("callback needs callback_url or callback_url_field", nil)
		}
		ep.CallbackMethod = strings.ToUpper(strings.TrimSpace(ep.CallbackMethod))
		if ep.CallbackMethod == "" {
			ep.CallbackMethod = http.MethodPost
		}
		if _, ok := allowedMethods[ep.CallbackMethod]; !ok {
			return nil, apperrors.NewInvalidConfig(fmt.Sprintf("callback method %q is not supported", ep.CallbackMethod), nil)
		}
		if ep.CallbackDelayMs < 0 {
			return nil, apperrors.NewInvalidConfig("negative callback delay", nil)
		}
	}

	snap := &EndpointSnapshot{Def: ep, Route: route, Selection: sel}
	if ep.SchemaValidationEnabled {
		snap.Schema, snap.SchemaErr = schema.Compile(ep.RequestSchema)
	}
	return snap, nil
}

// Servable reports whether the snapshot can answer traffic.
func (s *EndpointSnapshot) Servable() bool {
	return s.Def.IsActive && len(s.Def.Scenarios) > 0
}

func (s *EndpointSnapshot) Method() string { return s.Def.Method }

func (s *EndpointSnapshot) Template() routing.Template { return s.Route }

// withActiveIndex returns a copy serving scenario i in fixed mode.
func (s *EndpointSnapshot) withActiveIndex(i int) *EndpointSnapshot {
	cp := *s
	cp.Def.ActiveScenarioIndex = i
	cp.Selection = scenario.Fixed{Index: i}
	return &cp
}

// EndpointHandle is the stable identity of an endpoint in an entity's route
// table. Its configuration is swapped atomically; readers never lock.
type EndpointHandle struct {
	id   string
	snap atomic.Pointer[EndpointSnapshot]
}

func newEndpointHandle(snap *EndpointSnapshot) *EndpointHandle {
	h := &EndpointHandle{id: snap.Def.ID}
	h.snap.Store(snap)
	return h
}

func (h *EndpointHandle) ID() string { return h.id }

// Load returns the current snapshot.
func (h *EndpointHandle) Load() *EndpointSnapshot { return h.snap.Load() }

func (h *EndpointHandle) Method() string { return h.Load().Method() }

func (h *EndpointHandle) Template() routing.Template { return h.Load().Route }

func (h *EndpointHandle) Servable() bool { return h.Load().Servable() }

func (h *EndpointHandle) store(snap *EndpointSnapshot) { h.snap.Store(snap) }

// replace swaps old for next only if old is still current.
func (h *EndpointHandle) replace(old, next *EndpointSnapshot) bool {
	return h.snap.CompareAndSwap(old, next)
}

// SwitchScenario atomically makes scenario index the active one. Only
// endpoints in fixed mode can be switched.
func (h *EndpointHandle) SwitchScenario(index int) (*EndpointSnapshot, error) {
	for {
		old := h.snap.Load()
		n := len(old.Def.Scenarios)
		if n == 0 {
			return nil, apperrors.NewInvalidRequest("endpoint has no scenarios")
		}
		if index < 0 || index >= n {
			return nil, apperrors.NewInvalidRequest(fmt.Sprintf("scenario index %d out of range [0,%d)", index, n))
		}
		if old.Selection.Mode() != scenario.ModeFixed {
			return nil, apperrors.NewInvalidRequest(fmt.Sprintf("endpoint uses %s selection; switch only applies to fixed mode", old.Selection.Mode()))
		}
		next := old.withActiveIndex(index)
		if h.snap.CompareAndSwap(old, next) {
			return next, nil
		}
	}
}
