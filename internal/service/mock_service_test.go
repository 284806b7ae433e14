package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocklab/mockgate/internal/callback"
	"github.com/mocklab/mockgate/internal/config"
	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/placeholder"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []*model.TrafficLog
}

func (r *memRecorder) Record(e *model.TrafficLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *memRecorder) all() []*model.TrafficLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.TrafficLog(nil), r.entries...)
}

type memDispatcher struct {
	mu   sync.Mutex
	jobs []callback.Job
}

func (d *memDispatcher) Dispatch(job callback.Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
}

func (d *memDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

type pipeline struct {
	svc      *MockService
	manager  *EntityManager
	recorder *memRecorder
	disp     *memDispatcher
	entity   *model.Entity
}

func newPipeline(t *testing.T, eps ...model.Endpoint) *pipeline {
	t.Helper()
	m := NewEntityManager(config.RateConfig{})
	e := &model.Entity{ID: "ent", Name: "Shop", BasePath: "/api/shop"}
	snaps := make([]*EndpointSnapshot, 0, len(eps))
	for i, ep := range eps {
		ep.EntityID = e.ID
		ep.Position = i
		ep.IsActive = true
		snap, err := CompileEndpoint(ep, 0)
		require.NoError(t, err)
		snaps = append(snaps, snap)
	}
	m.RegisterEntity(e, snaps)

	p := &pipeline{manager: m, recorder: &memRecorder{}, disp: &memDispatcher{}, entity: e}
	p.svc = NewMockService(m, placeholder.New(), p.recorder, p.disp)
	return p
}

func (p *pipeline) do(method, path, body string) *MockResponse {
	return p.svc.Handle(context.Background(), MockRequest{
		Entity:  p.entity,
		Method:  method,
		Path:    path,
		Query:   url.Values{},
		Headers: http.Header{},
		Body:    []byte(body),
	})
}

const orderSchema = `{"type":"object","required":["amount"],"properties":{"amount":{"type":"number","minimum":1}}}`

func TestHandleServesRenderedScenario(t *testing.T) {
	p := newPipeline(t, model.Endpoint{
		ID: "get-user", Method: "GET", Path: "/users/{id}",
		Scenarios: []model.Scenario{{
			Name: "ok", ResponseCode: 200,
			ResponseHeaders: map[string]string{"X-Mock": "1"},
			ResponseBody:    `{"id":"{{request.path.id}}","n":{{random_int:5:5}}}`,
		}},
	})

	resp := p.do("GET", "/users/42", "")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"id":"42","n":5}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, "1", resp.Headers["X-Mock"])

	entries := p.recorder.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "get-user", entries[0].EndpointID)
	assert.Equal(t, model.OutcomeServed, entries[0].Outcome)
	assert.Equal(t, "ok", entries[0].ScenarioName)
	assert.Equal(t, string(resp.Body), entries[0].ResponseBody)
	assert.Equal(t, 0, p.disp.count())
}

func TestHandleNoRouteIsRecorded(t *testing.T) {
	p := newPipeline(t, model.Endpoint{ID: "a", Method: "GET", Path: "/a", Scenarios: threeScenarios()})

	resp := p.do("POST", "/a", "")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.JSONEq(t, `{"error":"No matching mock endpoint found"}`, string(resp.Body))

	entries := p.recorder.all()
	require.Len(t, entries, 1)
	assert.Equal(t, model.OutcomeNoRoute, entries[0].Outcome)
	assert.Empty(t, entries[0].EndpointID)
}

func TestHandleValidationFailureSkipsCallback(t *testing.T) {
	p := newPipeline(t, model.Endpoint{
		ID: "create", Method: "POST", Path: "/orders",
		Scenarios:               threeScenarios(),
		SchemaValidationEnabled: true,
		RequestSchema:           orderSchema,
		CallbackEnabled:         true,
		CallbackURL:             "http://127.0.0.1:1/hook",
	})

	resp := p.do("POST", "/orders", `{"amount":0}`)
	require.Equal(t, http.StatusBadRequest, resp.Status)

	var body validationBody
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	assert.Equal(t, "Request validation failed", body.Error)
	require.Len(t, body.Violations, 1)
	assert.Equal(t, "amount", body.Violations[0].Field)
	assert.Equal(t, "minimum", body.Violations[0].Constraint)

	assert.Equal(t, 0, p.disp.count())
	entries := p.recorder.all()
	require.Len(t, entries, 1)
	assert.Equal(t, model.OutcomeValidationFailed, entries[0].Outcome)
	assert.Empty(t, entries[0].ScenarioName)

	resp = p.do("POST", "/orders", `{"amount":3}`)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, p.disp.count())
}

func TestHandleBrokenStoredSchema(t *testing.T) {
	p := newPipeline(t, model.Endpoint{
		ID: "create", Method: "POST", Path: "/orders", Scenarios: threeScenarios(),
		SchemaValidationEnabled: true, RequestSchema: `{"type":`,
	})

	resp := p.do("POST", "/orders", `{}`)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, string(resp.Body), "schema invalid")
	assert.Equal(t, model.OutcomeSchemaInvalid, p.recorder.all()[0].Outcome)
}

func TestHandleCallbackJobCarriesResponse(t *testing.T) {
	p := newPipeline(t, model.Endpoint{
		ID: "pay", Method: "POST", Path: "/pay/{id}",
		Scenarios:        []model.Scenario{{Name: "ok", ResponseCode: 201, ResponseBody: `{"paid":true}`}},
		CallbackEnabled:  true,
		CallbackURLField: "notify.url",
		CallbackDelayMs:  250,
	})

	resp := p.do("POST", "/pay/7", `{"notify":{"url":"http://example.test/cb"}}`)
	require.Equal(t, http.StatusCreated, resp.Status)
	require.Equal(t, 1, p.disp.count())

	job := p.disp.jobs[0]
	assert.Equal(t, "notify.url", job.URLField)
	assert.Equal(t, "POST", job.Method)
	assert.Equal(t, 250*time.Millisecond, job.Delay)
	require.NotNil(t, job.Context.Response)
	assert.Equal(t, 201, job.Context.Response.Status)
	assert.Equal(t, map[string]any{"paid": true}, job.Context.Response.Body)
	assert.Equal(t, "7", job.Context.PathParams["id"])
}

func TestHandleAppliesDelay(t *testing.T) {
	p := newPipeline(t, model.Endpoint{
		ID: "slow", Method: "GET", Path: "/slow",
		Scenarios: []model.Scenario{{Name: "slow", ResponseCode: 200, ResponseBody: "done", DelayMs: 40}},
	})
	var slept time.Duration
	p.svc.sleep = func(_ context.Context, d time.Duration) { slept = d }

	resp := p.do("GET", "/slow", "")
	assert.Equal(t, 40*time.Millisecond, slept)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Headers["Content-Type"])
}

func TestHandleConsistentDuringSwitch(t *testing.T) {
	p := newPipeline(t, model.Endpoint{ID: "flip", Method: "GET", Path: "/flip", Scenarios: threeScenarios()})
	h, ok := p.manager.Endpoint("flip")
	require.True(t, ok)

	bodies := map[int]string{200: `{"v":"ok"}`, 202: `{"v":"slow"}`, 503: `{"v":"down"}`}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = h.SwitchScenario(i % 3)
		}
	}()
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := p.do("GET", "/flip", "")
			assert.Equal(t, bodies[resp.Status], string(resp.Body))
			assert.Equal(t, resp.Status, resp.Entry.ResponseCode)
		}()
	}
	wg.Wait()
	assert.Len(t, p.recorder.all(), 100)
}

func TestHandleConsistentDuringUpdate(t *testing.T) {
	def := model.Endpoint{ID: "live", EntityID: "ent", Method: "GET", Path: "/live", IsActive: true, Scenarios: threeScenarios()[:1]}
	p := newPipeline(t, def)

	full, err := CompileEndpoint(def, 0)
	require.NoError(t, err)
	empty := def
	empty.Scenarios = nil
	bare, err := CompileEndpoint(empty, 0)
	require.NoError(t, err)
	moved := def
	moved.Method = "POST"
	post, err := CompileEndpoint(moved, 0)
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		snaps := []*EndpointSnapshot{bare, full, post, full}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				p.manager.PutEndpoint(snaps[i%len(snaps)])
			}
		}
	}()

	for i := 0; i < 20000; i++ {
		resp := p.do("GET", "/live", "")
		switch resp.Entry.Outcome {
		case model.OutcomeServed:
			require.Equal(t, http.StatusOK, resp.Status)
			require.Equal(t, `{"v":"ok"}`, string(resp.Body))
			require.Equal(t, "live", resp.Entry.EndpointID)
		case model.OutcomeNoRoute:
			require.Equal(t, http.StatusNotFound, resp.Status)
		default:
			t.Fatalf("unexpected outcome %q", resp.Entry.Outcome)
		}
	}
	close(stop)
	wg.Wait()
}
