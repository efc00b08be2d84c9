// ABOUTME: Tests for the warehouse client against a fake HTTP endpoint.
// ABOUTME: Covers jsonstore parsing, CSV section parsing, and auth handling.

package xdmod

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeWarehouse serves canned responses from the user_interface controller
// path and captures the submitted form.
func newFakeWarehouse(t *testing.T, status int, body string) (*httptest.Server, *map[string]string) {
	t.Helper()
	captured := make(map[string]string)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != dataEndpoint {
			http.NotFound(w, r)
			return
		}
		require.NoError(t, r.ParseForm())
		for key := range r.PostForm {
			captured[key] = r.PostForm.Get(key)
		}
		captured["token_header"] = r.Header.Get("Token")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, &captured
}

func TestGetDataParsesJsonstore(t *testing.T) {
	payload := `{"data":[
		{"id":"101","name":"Doe, Jane","value":1234.5},
		{"id":102,"name":"Smith &amp; Jones","value":"88.25"}
	]}`
	ts, captured := newFakeWarehouse(t, http.StatusOK, payload)

	client := NewClient(ts.URL, "test-token", time.Second, nil)
	points, err := client.GetData(context.Background(), DataQuery{
		Realm:     "Jobs",
		GroupBy:   "person",
		Statistic: "total_cpu_hours",
		StartDate: "2025-01-01",
		EndDate:   "2025-01-31",
	})
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "101", points[0].ID)
	assert.Equal(t, "Doe, Jane", points[0].Name)
	assert.Equal(t, 1234.5, points[0].Value)

	// Numeric ids, string values, and HTML entities are all normalized.
	assert.Equal(t, "102", points[1].ID)
	assert.Equal(t, "Smith & Jones", points[1].Name)
	assert.Equal(t, 88.25, points[1].Value)

	form := *captured
	assert.Equal(t, "get_data", form["operation"])
	assert.Equal(t, "jsonstore", form["format"])
	assert.Equal(t, "Jobs", form["realm"])
	assert.Equal(t, "person", form["group_by"])
	assert.Equal(t, "total_cpu_hours", form["statistic"])
	assert.Equal(t, "test-token", form["token_header"])
}

func TestGetDataRequiresToken(t *testing.T) {
	client := NewClient("https://xdmod.example.edu", "", time.Second, nil)

	_, err := client.GetData(context.Background(), DataQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestGetDataWarehouseError(t *testing.T) {
	ts, _ := newFakeWarehouse(t, http.StatusUnauthorized, "Session expired")

	client := NewClient(ts.URL, "stale-token", time.Second, nil)
	_, err := client.GetData(context.Background(), DataQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Session expired")
}

func TestGetDataMalformedResponse(t *testing.T) {
	ts, _ := newFakeWarehouse(t, http.StatusOK, "<html>login page</html>")

	client := NewClient(ts.URL, "test-token", time.Second, nil)
	_, err := client.GetData(context.Background(), DataQuery{})
	require.Error(t, err)
}

func TestGetDataCSV(t *testing.T) {
	payload := `title
"CPU Hours: Total by Person"
parameters
"2025-01-01 to 2025-01-31"
---------
"Person","CPU Hours: Total"
"Doe, Jane",1234.5
"Smith &amp; Jones",88.25
---------
`
	ts, captured := newFakeWarehouse(t, http.StatusOK, payload)

	client := NewClient(ts.URL, "test-token", time.Second, nil)
	points, err := client.GetDataCSV(context.Background(), DataQuery{
		Realm:     "Jobs",
		GroupBy:   "person",
		Statistic: "total_cpu_hours",
		StartDate: "2025-01-01",
		EndDate:   "2025-01-31",
	})
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "Doe, Jane", points[0].Name)
	assert.Equal(t, 1234.5, points[0].Value)
	assert.Equal(t, "Smith & Jones", points[1].Name)

	assert.Equal(t, "csv", (*captured)["format"])
}

func TestParseWarehouseCSV(t *testing.T) {
	t.Run("skips preamble and header rows", func(t *testing.T) {
		payload := "title\n\"Report\"\n---------\n\"Person\",\"CPU Hours\"\n\"A\",1\n\"B\",2\n---------\n"
		points, err := parseWarehouseCSV(payload)
		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.Equal(t, "A", points[0].Name)
		assert.Equal(t, 2.0, points[1].Value)
	})

	t.Run("empty data section", func(t *testing.T) {
		payload := "title\n---------\n\"Person\",\"CPU Hours\"\n---------\n"
		points, err := parseWarehouseCSV(payload)
		require.NoError(t, err)
		assert.Empty(t, points)
	})

	t.Run("no separators yields nothing", func(t *testing.T) {
		points, err := parseWarehouseCSV("just,some,csv\nwith,no,sections\n")
		require.NoError(t, err)
		assert.Empty(t, points)
	})
}

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	client := NewClient("https://xdmod.example.edu/", "tok", 0, nil)
	assert.Equal(t, "https://xdmod.example.edu", client.BaseURL())
	assert.True(t, client.HasToken())
}
