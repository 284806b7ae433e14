package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocklab/mockgate/internal/model"
)

func TestStreamURL(t *testing.T) {
	got, err := streamURL("http://localhost:8080/", "e1", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/logs/e1?user_id=alice", got)

	got, err = streamURL("https://mock.example.com", "e 2", "", "k")
	require.NoError(t, err)
	assert.Equal(t, "wss://mock.example.com/ws/logs/e%202?api_key=k", got)

	_, err = streamURL("ftp://x", "e1", "", "")
	assert.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	line := formatMessage(model.LiveMessage{Type: "new_log", Log: &model.TrafficLog{
		Timestamp:    ts,
		Method:       "GET",
		Path:         "/users/1",
		ResponseCode: 200,
		DurationMs:   12,
		ScenarioName: "ok",
		Outcome:      model.OutcomeServed,
	}})
	assert.Equal(t, "03:04:05 GET    /users/1 -> 200 12ms [ok]", line)

	line = formatMessage(model.LiveMessage{Type: "new_log", Log: &model.TrafficLog{
		Timestamp: ts, Method: "POST", Path: "/x", ResponseCode: 404, Outcome: model.OutcomeNoRoute,
	}})
	assert.Equal(t, "03:04:05 POST   /x -> 404 0ms no_route", line)

	assert.Equal(t, "connected to e1", formatMessage(model.LiveMessage{Type: "connected", EntityID: "e1"}))
	assert.Empty(t, formatMessage(model.LiveMessage{Type: "pong"}))
}
