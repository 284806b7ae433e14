package repository

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocklab/mockgate/internal/model"
)

func TestEndpointRowRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	ep := &model.Endpoint{
		ID:                  "ep-1",
		EntityID:            "ent-1",
		Method:              "POST",
		Path:                "/orders/{id}",
		Position:            3,
		IsActive:            true,
		Scenarios:           []model.Scenario{{Name: "ok", ResponseCode: 201, ResponseBody: `{"id":"{{uuid}}"}`}},
		SelectionMode:       "weighted",
		ScenarioWeights:     []float64{1},
		CallbackEnabled:     true,
		CallbackURL:         "http://hook.local/cb",
		CallbackHeaders:     map[string]string{"X-Sig": "abc"},
		ActiveScenarioIndex: 0,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	got := endpointToRow(ep).toDomain()
	assert.Equal(t, *ep, got)
}

func TestEntityRowRoundTrip(t *testing.T) {
	e := &model.Entity{
		ID:         "ent-1",
		Name:       "payments",
		BasePath:   "/api/payments",
		APIKey:     "k",
		OwnerID:    "alice",
		SharedWith: []string{"bob"},
		CreatedAt:  time.Now().UTC(),
	}
	assert.Equal(t, e, entityToRow(e).toDomain())
}

func TestTrafficRowRoundTrip(t *testing.T) {
	l := &model.TrafficLog{
		ID:           "log-1",
		EntityID:     "ent-1",
		Timestamp:    time.Now().UTC(),
		Method:       "GET",
		Path:         "/api/payments/x",
		QueryParams:  map[string]string{"a": "1"},
		ResponseCode: 404,
		Outcome:      model.OutcomeNoRoute,
	}
	assert.Equal(t, l, trafficToRow(l).toDomain())
}

func TestDecodeTrafficFiltersAndLimits(t *testing.T) {
	var items []string
	for i, ep := range []string{"a", "b", "a", "a"} {
		raw, err := json.Marshal(model.TrafficLog{ID: string(rune('0' + i)), EndpointID: ep})
		require.NoError(t, err)
		items = append(items, string(raw))
	}
	items = append(items, "not json")

	got := decodeTraffic(items, "a", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "0", got[0].ID)
	assert.Equal(t, "2", got[1].ID)

	all := decodeTraffic(items, "", 10)
	assert.Len(t, all, 4)
}

func TestRedisTrafficRepoKey(t *testing.T) {
	r := NewRedisTrafficRepo(nil, "", 0)
	assert.Equal(t, "mock_traffic:ent-1", r.key("ent-1"))
	assert.Equal(t, 1000, r.listMax)
}
