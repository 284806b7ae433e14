package model

import (
	"slices"
	"time"
)

// Entity 代表一个 mock 租户 (独立的 base path + API key)
type Entity struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	BasePath   string    `json:"base_path"` // 例如 /api/payments
	APIKey     string    `json:"api_key"`
	OwnerID    string    `json:"owner_id,omitempty"`
	IsPublic   bool      `json:"is_public"`
	SharedWith []string  `json:"shared_with,omitempty"` // 被授权查看流量的用户
	CreatedAt  time.Time `json:"created_at"`
}

// CanView reports whether userID may read this entity's traffic.
func (e *Entity) CanView(userID string) bool {
	if e.IsPublic {
		return true
	}
	if userID == "" {
		return false
	}
	return e.OwnerID == userID || slices.Contains(e.SharedWith, userID)
}

// Scenario 一个命名的响应方案
type Scenario struct {
	Name            string            `json:"name"`
	ResponseCode    int               `json:"response_code"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body"` // 可包含 {{placeholder}}
	DelayMs         int               `json:"delay_ms"`
}

// Endpoint is the stored, loosely typed definition of a mock route. It is
// compiled into an immutable snapshot before it can serve traffic.
type Endpoint struct {
	ID                  string     `json:"id"`
	EntityID            string     `json:"entity_id"`
	Name                string     `json:"name"`
	Method              string     `json:"method"`
	Path                string     `json:"path"` // 模板, 如 /users/{id}
	Position            int        `json:"position"`
	IsActive            bool       `json:"is_active"`
	Scenarios           []Scenario `json:"scenarios"`
	SelectionMode       string     `json:"selection_mode"` // fixed | random | weighted
	ActiveScenarioIndex int        `json:"active_scenario_index"`
	ScenarioWeights     []float64  `json:"scenario_weights,omitempty"`

	SchemaValidationEnabled bool   `json:"schema_validation_enabled"`
	RequestSchema           string `json:"request_schema,omitempty"`

	CallbackEnabled  bool              `json:"callback_enabled"`
	CallbackURL      string            `json:"callback_url,omitempty"`
	CallbackURLField string            `json:"callback_url_field,omitempty"` // 请求体中的点路径
	CallbackMethod   string            `json:"callback_method,omitempty"`
	CallbackPayload  string            `json:"callback_payload,omitempty"`
	CallbackDelayMs  int               `json:"callback_delay_ms"`
	CallbackHeaders  map[string]string `json:"callback_headers,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
