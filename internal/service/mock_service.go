package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mocklab/mockgate/internal/callback"
	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/pkg/jsonpath"
	"github.com/mocklab/mockgate/internal/pkg/logger"
	"github.com/mocklab/mockgate/internal/pkg/metrics"
	"github.com/mocklab/mockgate/internal/placeholder"
	"github.com/mocklab/mockgate/internal/routing"
	"github.com/mocklab/mockgate/internal/scenario"
	"github.com/mocklab/mockgate/internal/schema"
)

// Recorder stores and broadcasts traffic entries.
type Recorder interface {
	Record(entry *model.TrafficLog)
}

// CallbackDispatcher schedules outbound callbacks.
type CallbackDispatcher interface {
	Dispatch(job callback.Job)
}

// MockRequest is an inbound call already resolved to an entity.
type MockRequest struct {
	Entity  *model.Entity
	Method  string
	Path    string // relative to the entity base path
	Query   url.Values
	Headers http.Header
	Body    []byte
}

// MockResponse is what goes back on the wire.
type MockResponse struct {
	Status  int
	Headers map[string]string
	Body    []byte
	Entry   *model.TrafficLog
}

type noRouteBody struct {
	Error string `json:"error"`
}

type validationBody struct {
	Error      string             `json:"error"`
	Violations []schema.Violation `json:"violations"`
}

type schemaInvalidBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// MockService runs the serving pipeline: match, validate, select, render,
// delay, record, then fire the callback.
type MockService struct {
	manager   *EntityManager
	engine    *placeholder.Engine
	recorder  Recorder
	callbacks CallbackDispatcher
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration)
}

func NewMockService(manager *EntityManager, engine *placeholder.Engine, recorder Recorder, callbacks CallbackDispatcher) *MockService {
	return &MockService{
		manager:   manager,
		engine:    engine,
		recorder:  recorder,
		callbacks: callbacks,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func (s *MockService) Handle(ctx context.Context, req MockRequest) *MockResponse {
	start := s.now()
	method := strings.ToUpper(req.Method)

	entry := &model.TrafficLog{
		ID:             uuid.NewString(),
		EntityID:       req.Entity.ID,
		Timestamp:      start.UTC(),
		Method:         method,
		Path:           req.Path,
		QueryParams:    flatten(req.Query),
		RequestHeaders: flatten(req.Headers),
		RequestBody:    string(req.Body),
	}

	// snap is the snapshot the match was decided on; the rest of the request uses it
	_, snap, params, ok := routing.MatchView(s.manager.Table(req.Entity.ID), (*EndpointHandle).Load, method, req.Path)
	if !ok {
		return s.finish(entry, start, model.OutcomeNoRoute, http.StatusNotFound,
			mustJSON(noRouteBody{Error: "No matching mock endpoint found"}), nil)
	}
	entry.EndpointID = snap.Def.ID

	if snap.Def.SchemaValidationEnabled {
		if snap.SchemaErr != nil || snap.Schema == nil {
			logger.Error("endpoint schema does not compile", "endpoint_id", snap.Def.ID, "error", snap.SchemaErr)
			return s.finish(entry, start, model.OutcomeSchemaInvalid, http.StatusInternalServerError,
				mustJSON(schemaInvalidBody{Error: "schema invalid", Detail: errString(snap.SchemaErr)}), nil)
		}
		if violations := snap.Schema.Validate(req.Body); len(violations) > 0 {
			metrics.ValidationFailures.WithLabelValues(req.Entity.ID).Inc()
			return s.finish(entry, start, model.OutcomeValidationFailed, http.StatusBadRequest,
				mustJSON(validationBody{Error: "Request validation failed", Violations: violations}), nil)
		}
	}

	rng := scenario.NewRand()
	sc := snap.Def.Scenarios[scenario.Select(snap.Selection, len(snap.Def.Scenarios), rng)]
	entry.ScenarioName = sc.Name

	var bodyDoc any
	if doc, err := jsonpath.Parse(req.Body); err == nil {
		bodyDoc = doc
	}
	tctx := &placeholder.Context{
		Method:     method,
		Path:       req.Path,
		PathParams: params,
		Query:      req.Query,
		Headers:    req.Headers,
		Body:       bodyDoc,
	}
	body := []byte(s.engine.Render(sc.ResponseBody, tctx, rng))

	headers := make(map[string]string, len(sc.ResponseHeaders)+1)
	for k, v := range sc.ResponseHeaders {
		headers[k] = v
	}
	if !hasHeader(headers, "Content-Type") {
		headers["Content-Type"] = contentTypeFor(body)
	}

	if sc.DelayMs > 0 {
		s.sleep(ctx, time.Duration(sc.DelayMs)*time.Millisecond)
	}

	resp := s.finish(entry, start, model.OutcomeServed, sc.ResponseCode, body, headers)

	if snap.Def.CallbackEnabled && s.callbacks != nil {
		var respDoc any = string(body)
		if doc, err := jsonpath.Parse(body); err == nil && doc != nil {
			respDoc = doc
		}
		tctx.Response = &placeholder.ResponseContext{Status: sc.ResponseCode, Body: respDoc}
		s.callbacks.Dispatch(callback.Job{
			EntityID:        req.Entity.ID,
			EndpointID:      snap.Def.ID,
			URL:             snap.Def.CallbackURL,
			URLField:        snap.Def.CallbackURLField,
			Method:          snap.Def.CallbackMethod,
			PayloadTemplate: snap.Def.CallbackPayload,
			Headers:         snap.Def.CallbackHeaders,
			Delay:           time.Duration(snap.Def.CallbackDelayMs) * time.Millisecond,
			Context:         tctx,
		})
	}
	return resp
}

func (s *MockService) finish(entry *model.TrafficLog, start time.Time, outcome string, status int, body []byte, headers map[string]string) *MockResponse {
	if headers == nil {
		headers = map[string]string{"Content-Type": "application/json"}
	}
	entry.Outcome = outcome
	entry.ResponseCode = status
	entry.ResponseHeaders = headers
	entry.ResponseBody = string(body)
	entry.DurationMs = s.now().Sub(start).Milliseconds()

	metrics.MockRequestsTotal.WithLabelValues(outcome).Inc()
	if s.recorder != nil {
		s.recorder.Record(entry)
	}
	return &MockResponse{Status: status, Headers: headers, Body: body, Entry: entry}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func contentTypeFor(body []byte) string {
	if len(body) > 0 && json.Valid(body) {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

func hasHeader(h map[string]string, name string) bool {
	for k := range h {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func flatten(values map[string][]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return b
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
