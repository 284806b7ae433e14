package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/pkg/apperrors"
	"github.com/mocklab/mockgate/internal/scenario"
)

func threeScenarios() []model.Scenario {
	return []model.Scenario{
		{Name: "ok", ResponseCode: 200, ResponseBody: `{"v":"ok"}`},
		{Name: "slow", ResponseCode: 202, ResponseBody: `{"v":"slow"}`},
		{Name: "down", ResponseCode: 503, ResponseBody: `{"v":"down"}`},
	}
}

func TestCompileEndpointNormalizes(t *testing.T) {
	snap, err := CompileEndpoint(model.Endpoint{
		ID: "ep", Method: "post", Path: "orders/{id}/", IsActive: true,
		Scenarios:           []model.Scenario{{ResponseBody: "x", DelayMs: 90000}},
		ActiveScenarioIndex: 5,
	}, 1000)
	require.NoError(t, err)

	assert.Equal(t, "POST", snap.Def.Method)
	assert.Equal(t, "/orders/{id}", snap.Def.Path)
	assert.Equal(t, 200, snap.Def.Scenarios[0].ResponseCode)
	assert.Equal(t, 1000, snap.Def.Scenarios[0].DelayMs)
	assert.Equal(t, "scenario-1", snap.Def.Scenarios[0].Name)
	assert.Equal(t, scenario.Fixed{Index: 0}, snap.Selection)
	assert.True(t, snap.Servable())
}

func TestCompileEndpointRejectsBadConfig(t *testing.T) {
	cases := map[string]model.Endpoint{
		"method":   {Method: "TRACE", Path: "/"},
		"path":     {Method: "GET", Path: "/a/{x}/{x}"},
		"code":     {Method: "GET", Path: "/", Scenarios: []model.Scenario{{ResponseCode: 42}}},
		"weights":  {Method: "GET", Path: "/", Scenarios: threeScenarios(), SelectionMode: "weighted", ScenarioWeights: []float64{1}},
		"mode":     {Method: "GET", Path: "/", SelectionMode: "sticky"},
		"callback": {Method: "GET", Path: "/", CallbackEnabled: true},
	}
	for name, ep := range cases {
		_, err := CompileEndpoint(ep, 0)
		require.Error(t, err, name)
		assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidConfig), name)
	}
}

func TestCompileEndpointKeepsSchemaError(t *testing.T) {
	snap, err := CompileEndpoint(model.Endpoint{
		Method: "POST", Path: "/", IsActive: true, Scenarios: threeScenarios(),
		SchemaValidationEnabled: true, RequestSchema: `{"type": 5}`,
	}, 0)
	require.NoError(t, err)
	assert.Error(t, snap.SchemaErr)
	assert.Nil(t, snap.Schema)
}

func TestEmptyScenarioEndpointNotServable(t *testing.T) {
	snap, err := CompileEndpoint(model.Endpoint{Method: "GET", Path: "/", IsActive: true}, 0)
	require.NoError(t, err)
	assert.False(t, snap.Servable())
}

func TestSwitchScenario(t *testing.T) {
	snap, err := CompileEndpoint(model.Endpoint{ID: "ep", Method: "GET", Path: "/", IsActive: true, Scenarios: threeScenarios()}, 0)
	require.NoError(t, err)
	h := newEndpointHandle(snap)

	next, err := h.SwitchScenario(2)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Def.ActiveScenarioIndex)
	assert.Same(t, next, h.Load())
	assert.Equal(t, 0, snap.Def.ActiveScenarioIndex, "old snapshot untouched")

	_, err = h.SwitchScenario(3)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))
	_, err = h.SwitchScenario(-1)
	assert.Error(t, err)
}

func TestSwitchScenarioRejectsNonFixed(t *testing.T) {
	snap, err := CompileEndpoint(model.Endpoint{Method: "GET", Path: "/", IsActive: true, Scenarios: threeScenarios(), SelectionMode: "random"}, 0)
	require.NoError(t, err)
	_, err = newEndpointHandle(snap).SwitchScenario(1)
	assert.Error(t, err)
}

func TestConcurrentSwitchesLeaveConsistentSnapshot(t *testing.T) {
	snap, err := CompileEndpoint(model.Endpoint{Method: "GET", Path: "/", IsActive: true, Scenarios: threeScenarios()}, 0)
	require.NoError(t, err)
	h := newEndpointHandle(snap)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = h.SwitchScenario(i % 3)
			s := h.Load()
			assert.Equal(t, s.Def.ActiveScenarioIndex, s.Selection.(scenario.Fixed).Index)
		}(i)
	}
	wg.Wait()
}
