package model

import (
	"time"
)

// Traffic outcomes.
const (
	OutcomeServed           = "served"
	OutcomeNoRoute          = "no_route"
	OutcomeValidationFailed = "validation_failed"
	OutcomeSchemaInvalid    = "schema_invalid"
)

// TrafficLog 一次 mock 请求/响应的完整记录, 创建后不可变
type TrafficLog struct {
	ID              string            `json:"id"`
	EntityID        string            `json:"entity_id"`
	EndpointID      string            `json:"endpoint_id,omitempty"` // 未匹配时为空
	Timestamp       time.Time         `json:"timestamp"`
	Method          string            `json:"method"`
	Path            string            `json:"path"`
	QueryParams     map[string]string `json:"query_params,omitempty"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	RequestBody     string            `json:"request_body,omitempty"`
	ResponseCode    int               `json:"response_code"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	DurationMs      int64             `json:"duration_ms"`
	ScenarioName    string            `json:"scenario_name,omitempty"`
	Outcome         string            `json:"outcome"`
}

// TrafficFilter bounds a backlog read.
type TrafficFilter struct {
	EntityID   string
	EndpointID string
	Limit      int
}

// LiveMessage is the envelope pushed to live subscribers.
type LiveMessage struct {
	Type     string      `json:"type"`
	EntityID string      `json:"entity_id,omitempty"`
	Message  string      `json:"message,omitempty"`
	Log      *TrafficLog `json:"log,omitempty"`
}
