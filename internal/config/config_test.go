package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: "9090"
auth:
  admin_key: secret
traffic:
  max_entries_per_entity: 50
entities:
  - name: Payments
    owner_id: alice
    endpoints:
      - method: post
        path: /charges/{id}
        selection_mode: weighted
        scenario_weights: [1, 3]
        scenarios:
          - name: ok
            response_code: 200
            response_body: '{"id":"{{request.path.id}}"}'
          - name: fail
            response_code: 502
`

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleConfig), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Auth.AdminKey)
	assert.Equal(t, 50, cfg.Traffic.MaxEntriesPerEntity)
	assert.Equal(t, 100, cfg.Traffic.DefaultLimit)
	assert.Equal(t, "json", cfg.Log.Format)

	require.Len(t, cfg.Entities, 1)
	ep := cfg.Entities[0].Endpoints[0]
	assert.Equal(t, "weighted", ep.SelectionMode)
	assert.Equal(t, []float64{1, 3}, ep.ScenarioWeights)
	require.Len(t, ep.Scenarios, 2)
	assert.Equal(t, 502, ep.Scenarios[1].ResponseCode)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("MOCKGATE_AUTH_ADMIN_KEY", "from-env")
	t.Setenv("MOCKGATE_RATE_QPS", "12.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.AdminKey)
	assert.InDelta(t, 12.5, cfg.Rate.QPS, 0.0001)
	assert.Equal(t, "8080", cfg.Server.Port)
}
