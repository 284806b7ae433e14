// Package callback fires outbound HTTP notifications after a mock response has
// been served. Delivery is fire-and-forget: one attempt, no retry, and the
// outcome never reaches the original caller.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mocklab/mockgate/internal/pkg/jsonpath"
	"github.com/mocklab/mockgate/internal/pkg/logger"
	"github.com/mocklab/mockgate/internal/pkg/metrics"
	"github.com/mocklab/mockgate/internal/placeholder"
)

// Outcomes reported to metrics and the result hook.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeCancelled = "cancelled"
)

// Job describes one callback. Context must already carry the request and the
// served response so payload templates can read both.
type Job struct {
	EntityID        string
	EndpointID      string
	URL             string
	URLField        string
	Method          string
	PayloadTemplate string
	Headers         map[string]string
	Delay           time.Duration
	Context         *placeholder.Context
}

// Result is what happened to a Job.
type Result struct {
	EntityID   string
	EndpointID string
	URL        string
	Method     string
	Outcome    string
	StatusCode int
	Err        error
	Duration   time.Duration
}

type Config struct {
	Timeout  time.Duration
	MaxDelay time.Duration
}

type Dispatcher struct {
	client   *http.Client
	engine   *placeholder.Engine
	cfg      Config
	onResult func(Result)
	now      func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	timers map[uint64]*time.Timer
	seq    uint64
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithResultHook registers fn to observe every outcome. fn runs on the
// dispatcher's goroutines and must not block.
func WithResultHook(fn func(Result)) Option {
	return func(d *Dispatcher) { d.onResult = fn }
}

func New(engine *placeholder.Engine, cfg Config, opts ...Option) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		client:  &http.Client{},
		engine:  engine,
		cfg:     cfg,
		now:     time.Now,
		baseCtx: ctx,
		cancel:  cancel,
		timers:  make(map[uint64]*time.Timer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch schedules job and returns immediately.
func (d *Dispatcher) Dispatch(job Job) {
	target, ok := d.resolveURL(job)
	if !ok {
		logger.Warn("callback skipped: no destination",
			"entity_id", job.EntityID, "endpoint_id", job.EndpointID, "url_field", job.URLField)
		d.report(Result{EntityID: job.EntityID, EndpointID: job.EndpointID, Outcome: OutcomeSkipped})
		return
	}

	delay := job.Delay
	if delay < 0 {
		delay = 0
	}
	if d.cfg.MaxDelay > 0 && delay > d.cfg.MaxDelay {
		delay = d.cfg.MaxDelay
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.report(Result{EntityID: job.EntityID, EndpointID: job.EndpointID, URL: target, Outcome: OutcomeCancelled})
		return
	}
	id := d.seq
	d.seq++
	d.wg.Add(1)
	d.timers[id] = time.AfterFunc(delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		delete(d.timers, id)
		d.mu.Unlock()
		d.fire(job, target)
	})
}

// Pending returns the number of scheduled callbacks that have not fired.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Close cancels timers that have not fired and waits for in-flight deliveries
// until ctx expires, after which they are aborted.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	for id, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
			metrics.CallbacksTotal.WithLabelValues(OutcomeCancelled).Inc()
		}
		delete(d.timers, id)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) resolveURL(job Job) (string, bool) {
	raw := strings.TrimSpace(job.URL)
	if raw == "" && job.URLField != "" && job.Context != nil {
		raw, _ = jsonpath.LookupString(job.Context.Body, job.URLField)
		raw = strings.TrimSpace(raw)
	}
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

func (d *Dispatcher) fire(job Job, target string) {
	start := d.now()
	method := strings.ToUpper(strings.TrimSpace(job.Method))
	if method == "" {
		method = http.MethodPost
	}
	res := Result{EntityID: job.EntityID, EndpointID: job.EndpointID, URL: target, Method: method}
	// runs on a timer goroutine
	defer func() {
		if r := recover(); r != nil && res.Outcome == "" {
			res.Outcome, res.Err = OutcomeFailed, fmt.Errorf("callback panic: %v", r)
			d.finish(res, start)
		}
	}()

	payload := d.payload(job)

	ctx, cancel := context.WithTimeout(d.baseCtx, d.cfg.Timeout)
	defer cancel()

	req, err := buildRequest(ctx, method, target, payload)
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		d.finish(res, start)
		return
	}
	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		if d.baseCtx.Err() != nil {
			res.Outcome = OutcomeCancelled
		}
		d.finish(res, start)
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	res.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res.Outcome = OutcomeDelivered
	} else {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	d.finish(res, start)
}

func (d *Dispatcher) finish(res Result, start time.Time) {
	res.Duration = d.now().Sub(start)
	switch res.Outcome {
	case OutcomeDelivered:
		logger.Info("callback delivered",
			"entity_id", res.EntityID, "endpoint_id", res.EndpointID, "url", res.URL,
			"status", res.StatusCode, "duration_ms", res.Duration.Milliseconds())
	default:
		logger.Warn("callback failed",
			"entity_id", res.EntityID, "endpoint_id", res.EndpointID, "url", res.URL,
			"outcome", res.Outcome, "status", res.StatusCode, "error", errString(res.Err))
	}
	d.report(res)
}

func (d *Dispatcher) report(res Result) {
	metrics.CallbacksTotal.WithLabelValues(res.Outcome).Inc()
	if d.onResult != nil {
		d.onResult(res)
	}
}

func (d *Dispatcher) payload(job Job) []byte {
	if strings.TrimSpace(job.PayloadTemplate) != "" {
		return []byte(d.engine.Render(job.PayloadTemplate, job.Context, nil))
	}
	b, err := json.Marshal(defaultPayload(job, d.now().UTC()))
	if err != nil {
		return []byte("{}")
	}
	return b
}

func defaultPayload(job Job, now time.Time) map[string]any {
	p := map[string]any{
		"event":       "mock.callback",
		"entity_id":   job.EntityID,
		"endpoint_id": job.EndpointID,
		"timestamp":   now.Format(time.RFC3339Nano),
	}
	if c := job.Context; c != nil {
		p["request"] = map[string]any{
			"method":      c.Method,
			"path":        c.Path,
			"path_params": c.PathParams,
			"query":       c.Query,
			"body":        c.Body,
		}
		if c.Response != nil {
			p["response"] = map[string]any{
				"status_code": c.Response.Status,
				"body":        c.Response.Body,
			}
		}
	}
	return p
}

// buildRequest sends GET payloads as query parameters and everything else as
// a JSON body.
func buildRequest(ctx context.Context, method, target string, payload []byte) (*http.Request, error) {
	if method == http.MethodGet {
		u, err := url.Parse(target)
		if err != nil {
			return nil, err
		}
		var obj map[string]any
		if json.Unmarshal(payload, &obj) == nil {
			q := u.Query()
			for k, v := range obj {
				q.Set(k, queryValue(v))
			}
			u.RawQuery = q.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func queryValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
