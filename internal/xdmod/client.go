// ABOUTME: HTTP client for the XDMoD analytics warehouse user_interface controller.
// ABOUTME: Supports jsonstore and CSV response formats with HTML-entity cleanup.

package xdmod

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// dataEndpoint is the warehouse controller path serving aggregate data.
const dataEndpoint = "/controllers/user_interface.php"

// Client talks to an XDMoD instance using an API token.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a warehouse client. Pass nil logger for default.
func NewClient(baseURL, apiToken string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		http:     &http.Client{Timeout: timeout},
		logger:   logger.With("component", "xdmod"),
	}
}

// BaseURL returns the configured warehouse endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// HasToken reports whether an API token is configured.
func (c *Client) HasToken() bool { return c.apiToken != "" }

// DataQuery describes one aggregate data request.
type DataQuery struct {
	Realm     string // e.g. "Jobs"
	GroupBy   string // dimension, e.g. "person"
	Statistic string // e.g. "total_cpu_hours"
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
	Limit     int
}

// DataPoint is one row of an aggregate jsonstore response.
type DataPoint struct {
	ID    string
	Name  string
	Value float64
}

// jsonstoreResponse is the envelope the warehouse returns for format=jsonstore.
type jsonstoreResponse struct {
	Data []map[string]any `json:"data"`
}

// GetData fetches aggregate data grouped by the query's dimension.
func (c *Client) GetData(ctx context.Context, q DataQuery) ([]DataPoint, error) {
	body, err := c.post(ctx, q, "jsonstore")
	if err != nil {
		return nil, err
	}

	var parsed jsonstoreResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing jsonstore response: %w", err)
	}

	points := make([]DataPoint, 0, len(parsed.Data))
	for _, row := range parsed.Data {
		p := DataPoint{
			ID:   stringField(row, "id"),
			Name: html.UnescapeString(stringField(row, "name")),
		}
		switch v := row["value"].(type) {
		case float64:
			p.Value = v
		case string:
			p.Value, _ = strconv.ParseFloat(v, 64)
		}
		points = append(points, p)
	}

	c.logger.Debug("warehouse query complete",
		"realm", q.Realm,
		"statistic", q.Statistic,
		"rows", len(points),
	)
	return points, nil
}

// GetDataCSV fetches the same aggregate data in CSV form and parses the
// warehouse's sectioned layout (preamble, metric header, data rows delimited
// by dashed separator lines).
func (c *Client) GetDataCSV(ctx context.Context, q DataQuery) ([]DataPoint, error) {
	body, err := c.post(ctx, q, "csv")
	if err != nil {
		return nil, err
	}
	return parseWarehouseCSV(string(body))
}

// post submits the form-encoded get_data operation and returns the raw body.
func (c *Client) post(ctx context.Context, q DataQuery, format string) ([]byte, error) {
	if c.apiToken == "" {
		return nil, fmt.Errorf("no API token configured")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	form := url.Values{
		"operation":  {"get_data"},
		"format":     {format},
		"realm":      {q.Realm},
		"group_by":   {q.GroupBy},
		"statistic":  {q.Statistic},
		"start_date": {q.StartDate},
		"end_date":   {q.EndDate},
		"limit":      {strconv.Itoa(limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+dataEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Token", c.apiToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying warehouse: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("warehouse returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// parseWarehouseCSV extracts name/value rows from the warehouse CSV layout.
// The payload starts with a title/parameters preamble, then dashed separator
// lines bracket a header row (dimension label, metric label) followed by the
// data rows.
func parseWarehouseCSV(payload string) ([]DataPoint, error) {
	reader := csv.NewReader(strings.NewReader(payload))
	reader.FieldsPerRecord = -1

	var points []DataPoint
	inData := false
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing CSV: %w", err)
		}

		if len(record) == 1 && strings.HasPrefix(record[0], "---") {
			// Separator toggles the data section; the second one ends it.
			if inData {
				break
			}
			inData = true
			continue
		}
		if !inData || len(record) < 2 {
			continue
		}

		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			// Header row carries the metric label instead of a number.
			continue
		}
		points = append(points, DataPoint{
			Name:  html.UnescapeString(record[0]),
			Value: value,
		})
	}
	return points, nil
}

// stringField reads a string-typed field from a jsonstore row, tolerating
// numeric ids.
func stringField(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
