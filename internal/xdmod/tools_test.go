// ABOUTME: Tests for the XDMoD tool handlers and their argument handling.
// ABOUTME: Runs the handlers against a fake warehouse endpoint.

package xdmod

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/access-ci-org/xdmod-mcp/internal/registry"
)

func newToolRegistry(t *testing.T, warehouseBody string) *registry.Static {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(warehouseBody))
	}))
	t.Cleanup(ts.Close)

	reg := registry.NewStatic(nil)
	client := NewClient(ts.URL, "test-token", time.Second, nil)
	require.NoError(t, RegisterTools(reg, client))
	return reg
}

const usagePayload = `{"data":[
	{"id":"101","name":"Doe, Jane","value":1200},
	{"id":"102","name":"Roe, Richard","value":300.5}
]}`

func TestRegisterToolsExposesToolSet(t *testing.T) {
	reg := newToolRegistry(t, usagePayload)

	tools := reg.Tools()
	require.Len(t, tools, 3)
	assert.Equal(t, "get_usage_data", tools[0].Name)
	assert.Equal(t, "discover_person_ids", tools[1].Name)
	assert.Equal(t, "debug_auth", tools[2].Name)
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Description)
		assert.NotEmpty(t, tool.InputSchema)
	}
}

func TestGetUsageDataReport(t *testing.T) {
	reg := newToolRegistry(t, usagePayload)

	result, err := reg.Call(context.Background(), "get_usage_data", map[string]any{
		"start_date": "2025-01-01",
		"end_date":   "2025-01-31",
	})
	require.NoError(t, err)

	report, ok := result.(string)
	require.True(t, ok, "expected a text report, got %T", result)
	assert.Contains(t, report, "Jobs / total_cpu_hours grouped by person")
	assert.Contains(t, report, "Total rows: 2")
	assert.Contains(t, report, "Doe, Jane: 1200")
	assert.Contains(t, report, "Roe, Richard: 300.5")
	assert.Contains(t, report, "Total total_cpu_hours: 1500.5")
}

func TestGetUsageDataRequiresDates(t *testing.T) {
	reg := newToolRegistry(t, usagePayload)

	_, err := reg.Call(context.Background(), "get_usage_data", map[string]any{
		"start_date": "2025-01-01",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_date")
}

func TestGetUsageDataUserFilter(t *testing.T) {
	reg := newToolRegistry(t, usagePayload)

	t.Run("matching filter narrows the report", func(t *testing.T) {
		result, err := reg.Call(context.Background(), "get_usage_data", map[string]any{
			"start_date": "2025-01-01",
			"end_date":   "2025-01-31",
			"user_name":  "doe",
		})
		require.NoError(t, err)

		report := result.(string)
		assert.Contains(t, report, `Rows matching "doe": 1`)
		assert.Contains(t, report, "Doe, Jane")
		assert.NotContains(t, report, "Roe, Richard: 300.5")
	})

	t.Run("non-matching filter lists sample rows", func(t *testing.T) {
		result, err := reg.Call(context.Background(), "get_usage_data", map[string]any{
			"start_date": "2025-01-01",
			"end_date":   "2025-01-31",
			"user_name":  "nobody",
		})
		require.NoError(t, err)

		report := result.(string)
		assert.Contains(t, report, "No data found.")
		assert.Contains(t, report, "Sample rows:")
	})
}

func TestDiscoverPersonIDs(t *testing.T) {
	reg := newToolRegistry(t, usagePayload)

	result, err := reg.Call(context.Background(), "discover_person_ids", map[string]any{
		"search_term": "roe",
	})
	require.NoError(t, err)

	report := result.(string)
	assert.Contains(t, report, "Found 2 total users")
	assert.Contains(t, report, "Roe, Richard")
	assert.NotContains(t, report, "Jane")
}

func TestDiscoverPersonIDsLimit(t *testing.T) {
	reg := newToolRegistry(t, usagePayload)

	// JSON numbers arrive as float64.
	result, err := reg.Call(context.Background(), "discover_person_ids", map[string]any{
		"limit": float64(1),
	})
	require.NoError(t, err)
	assert.Contains(t, result.(string), "Matching users (1 shown)")
}

func TestDebugAuth(t *testing.T) {
	t.Run("with token", func(t *testing.T) {
		reg := newToolRegistry(t, usagePayload)

		result, err := reg.Call(context.Background(), "debug_auth", nil)
		require.NoError(t, err)
		assert.Contains(t, result.(string), "API token present: true")
	})

	t.Run("without token", func(t *testing.T) {
		reg := registry.NewStatic(nil)
		client := NewClient("https://xdmod.example.edu", "", time.Second, nil)
		require.NoError(t, RegisterTools(reg, client))

		result, err := reg.Call(context.Background(), "debug_auth", nil)
		require.NoError(t, err)
		report := result.(string)
		assert.Contains(t, report, "API token present: false")
		assert.Contains(t, report, "XDMOD_API_TOKEN")
	})
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]any{
		"s":     "value",
		"empty": "",
		"n":     float64(7),
	}

	assert.Equal(t, "value", stringArg(args, "s", "def"))
	assert.Equal(t, "def", stringArg(args, "empty", "def"))
	assert.Equal(t, "def", stringArg(args, "missing", "def"))
	assert.Equal(t, 7, intArg(args, "n", 3))
	assert.Equal(t, 3, intArg(args, "missing", 3))
}
