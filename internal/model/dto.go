package model

// CreateEntityRequest is the admin payload for a new entity.
type CreateEntityRequest struct {
	Name       string   `json:"name" binding:"required"`
	OwnerID    string   `json:"owner_id"`
	IsPublic   bool     `json:"is_public"`
	SharedWith []string `json:"shared_with"`
}

// UpdateEntityRequest changes visibility only; names and base paths are fixed.
type UpdateEntityRequest struct {
	IsPublic     *bool `json:"is_public"`
	RotateAPIKey bool  `json:"rotate_api_key"`
}

type ShareRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// EndpointRequest creates or replaces an endpoint definition.
type EndpointRequest struct {
	Name                    string            `json:"name"`
	Method                  string            `json:"method" binding:"required"`
	Path                    string            `json:"path" binding:"required"`
	IsActive                *bool             `json:"is_active"`
	Scenarios               []Scenario        `json:"scenarios"`
	SelectionMode           string            `json:"selection_mode"`
	ActiveScenarioIndex     int               `json:"active_scenario_index"`
	ScenarioWeights         []float64         `json:"scenario_weights"`
	SchemaValidationEnabled bool              `json:"schema_validation_enabled"`
	RequestSchema           string            `json:"request_schema"`
	CallbackEnabled         bool              `json:"callback_enabled"`
	CallbackURL             string            `json:"callback_url"`
	CallbackURLField        string            `json:"callback_url_field"`
	CallbackMethod          string            `json:"callback_method"`
	CallbackPayload         string            `json:"callback_payload"`
	CallbackDelayMs         int               `json:"callback_delay_ms"`
	CallbackHeaders         map[string]string `json:"callback_headers"`
}

// Apply copies the request onto ep, leaving identity fields untouched.
func (r *EndpointRequest) Apply(ep *Endpoint) {
	ep.Name = r.Name
	ep.Method = r.Method
	ep.Path = r.Path
	ep.IsActive = true
	if r.IsActive != nil {
		ep.IsActive = *r.IsActive
	}
	ep.Scenarios = r.Scenarios
	ep.SelectionMode = r.SelectionMode
	ep.ActiveScenarioIndex = r.ActiveScenarioIndex
	ep.ScenarioWeights = r.ScenarioWeights
	ep.SchemaValidationEnabled = r.SchemaValidationEnabled
	ep.RequestSchema = r.RequestSchema
	ep.CallbackEnabled = r.CallbackEnabled
	ep.CallbackURL = r.CallbackURL
	ep.CallbackURLField = r.CallbackURLField
	ep.CallbackMethod = r.CallbackMethod
	ep.CallbackPayload = r.CallbackPayload
	ep.CallbackDelayMs = r.CallbackDelayMs
	ep.CallbackHeaders = r.CallbackHeaders
}

// SwitchScenarioResponse reports the scenario now active.
type SwitchScenarioResponse struct {
	EndpointID  string `json:"endpoint_id"`
	ActiveIndex int    `json:"active_scenario_index"`
	Scenario    string `json:"scenario"`
}
