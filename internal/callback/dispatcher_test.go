package callback

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocklab/mockgate/internal/placeholder"
)

type received struct {
	method string
	query  map[string][]string
	header http.Header
	body   []byte
}

func newReceiver(t *testing.T, status int) (*httptest.Server, <-chan received) {
	t.Helper()
	ch := make(chan received, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		ch <- received{method: r.Method, query: r.URL.Query(), header: r.Header.Clone(), body: b}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func collectResults() (func(Result), func() []Result) {
	var mu sync.Mutex
	var results []Result
	return func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}, func() []Result {
			mu.Lock()
			defer mu.Unlock()
			return append([]Result(nil), results...)
		}
}

func requestContext() *placeholder.Context {
	return &placeholder.Context{
		Method:     "POST",
		Path:       "/orders/9",
		PathParams: map[string]string{"id": "9"},
		Body:       map[string]any{"callback": map[string]any{"url": ""}, "amount": 10.0},
		Response:   &placeholder.ResponseContext{Status: 201, Body: map[string]any{"order": "9"}},
	}
}

func TestDispatchDeliversDefaultPayload(t *testing.T) {
	srv, got := newReceiver(t, http.StatusOK)
	hook, results := collectResults()
	d := New(placeholder.New(), Config{Timeout: time.Second}, WithResultHook(hook))
	defer d.Close(context.Background())

	d.Dispatch(Job{EntityID: "e1", EndpointID: "ep1", URL: srv.URL, Context: requestContext()})

	select {
	case r := <-got:
		assert.Equal(t, http.MethodPost, r.method)
		assert.Equal(t, "application/json", r.header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.Unmarshal(r.body, &body))
		assert.Equal(t, "ep1", body["endpoint_id"])
		resp := body["response"].(map[string]any)
		assert.EqualValues(t, 201, resp["status_code"])
	case <-time.After(2 * time.Second):
		t.Fatal("callback not received")
	}

	require.Eventually(t, func() bool { return len(results()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, OutcomeDelivered, results()[0].Outcome)
}

func TestDispatchURLFromBodyAndTemplate(t *testing.T) {
	srv, got := newReceiver(t, http.StatusAccepted)
	d := New(placeholder.New(), Config{Timeout: time.Second})
	defer d.Close(context.Background())

	ctx := requestContext()
	ctx.Body = map[string]any{"callback": map[string]any{"url": srv.URL + "/hook"}}

	d.Dispatch(Job{
		URLField:        "callback.url",
		Method:          "put",
		PayloadTemplate: `{"order":"{{request.path.id}}","status":{{response.status}}}`,
		Headers:         map[string]string{"X-Signature": "sig"},
		Context:         ctx,
	})

	select {
	case r := <-got:
		assert.Equal(t, http.MethodPut, r.method)
		assert.Equal(t, "sig", r.header.Get("X-Signature"))
		assert.JSONEq(t, `{"order":"9","status":201}`, string(r.body))
	case <-time.After(2 * time.Second):
		t.Fatal("callback not received")
	}
}

func TestDispatchGETSendsQuery(t *testing.T) {
	srv, got := newReceiver(t, http.StatusOK)
	d := New(placeholder.New(), Config{Timeout: time.Second})
	defer d.Close(context.Background())

	d.Dispatch(Job{URL: srv.URL, Method: "GET", PayloadTemplate: `{"id":"{{request.path.id}}","n":3}`, Context: requestContext()})

	select {
	case r := <-got:
		assert.Equal(t, http.MethodGet, r.method)
		assert.Equal(t, []string{"9"}, r.query["id"])
		assert.Equal(t, []string{"3"}, r.query["n"])
		assert.Empty(t, r.body)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not received")
	}
}

func TestDispatchSkipsWithoutDestination(t *testing.T) {
	hook, results := collectResults()
	d := New(placeholder.New(), Config{}, WithResultHook(hook))
	defer d.Close(context.Background())

	d.Dispatch(Job{URLField: "callback.url", Context: requestContext()})
	d.Dispatch(Job{URLField: "amount", Context: requestContext()})

	rs := results()
	require.Len(t, rs, 2)
	for _, r := range rs {
		assert.Equal(t, OutcomeSkipped, r.Outcome)
	}
	assert.Equal(t, 0, d.Pending())
}

func TestDispatchNon2xxIsFailure(t *testing.T) {
	srv, _ := newReceiver(t, http.StatusInternalServerError)
	hook, results := collectResults()
	d := New(placeholder.New(), Config{Timeout: time.Second}, WithResultHook(hook))
	defer d.Close(context.Background())

	d.Dispatch(Job{URL: srv.URL, Context: requestContext()})

	require.Eventually(t, func() bool { return len(results()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, OutcomeFailed, results()[0].Outcome)
	assert.Equal(t, http.StatusInternalServerError, results()[0].StatusCode)
}

func TestDispatchReturnsBeforeDelay(t *testing.T) {
	srv, got := newReceiver(t, http.StatusOK)
	d := New(placeholder.New(), Config{Timeout: time.Second})
	defer d.Close(context.Background())

	start := time.Now()
	d.Dispatch(Job{URL: srv.URL, Delay: 150 * time.Millisecond, Context: requestContext()})
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1, d.Pending())

	select {
	case <-got:
		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not received")
	}
}

func TestCloseCancelsPending(t *testing.T) {
	srv, got := newReceiver(t, http.StatusOK)
	d := New(placeholder.New(), Config{Timeout: time.Second})

	d.Dispatch(Job{URL: srv.URL, Delay: time.Hour, Context: requestContext()})
	require.Equal(t, 1, d.Pending())

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 0, d.Pending())

	hook, results := collectResults()
	d.onResult = hook
	d.Dispatch(Job{URL: srv.URL, Context: requestContext()})
	require.Len(t, results(), 1)
	assert.Equal(t, OutcomeCancelled, results()[0].Outcome)

	select {
	case <-got:
		t.Fatal("callback fired after close")
	case <-time.After(50 * time.Millisecond):
	}
}

type panicTransport struct{}

func (panicTransport) RoundTrip(*http.Request) (*http.Response, error) {
	panic("transport exploded")
}

func TestDispatchPanicIsReportedAsFailure(t *testing.T) {
	hook, results := collectResults()
	d := New(placeholder.New(), Config{Timeout: time.Second},
		WithResultHook(hook), WithHTTPClient(&http.Client{Transport: panicTransport{}}))

	d.Dispatch(Job{EntityID: "e1", EndpointID: "ep1", URL: "http://127.0.0.1:1/hook"})
	require.Eventually(t, func() bool { return len(results()) == 1 }, 2*time.Second, 10*time.Millisecond)
	res := results()[0]
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorContains(t, res.Err, "transport exploded")
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatchNonFinitePayloadTokenDelivers(t *testing.T) {
	srv, ch := newReceiver(t, http.StatusOK)
	hook, results := collectResults()
	d := New(placeholder.New(), Config{Timeout: time.Second}, WithResultHook(hook))

	d.Dispatch(Job{EntityID: "e1", URL: srv.URL, PayloadTemplate: `{"v":{{random_float:0:Inf}}}`})

	select {
	case got := <-ch:
		var body map[string]float64
		require.NoError(t, json.Unmarshal(got.body, &body))
		assert.LessOrEqual(t, body["v"], 100.0)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not received")
	}
	require.Eventually(t, func() bool { return len(results()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, OutcomeDelivered, results()[0].Outcome)
	require.NoError(t, d.Close(context.Background()))
}
