// ABOUTME: MCP tool definitions backed by the XDMoD warehouse client.
// ABOUTME: Registers usage-data, person-discovery, and auth-debug tools into a registry.

package xdmod

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/access-ci-org/xdmod-mcp/internal/registry"
)

// RegisterTools adds the XDMoD tool set to the given registry.
func RegisterTools(reg *registry.Static, client *Client) error {
	tools := []struct {
		tool    registry.Tool
		handler registry.Handler
	}{
		{
			tool: registry.Tool{
				Name:        "get_usage_data",
				Description: "Get aggregate usage data from XDMoD for a date range, optionally filtered by user name",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"start_date": {"type": "string", "description": "Start date (YYYY-MM-DD)"},
						"end_date": {"type": "string", "description": "End date (YYYY-MM-DD)"},
						"realm": {"type": "string", "description": "XDMoD realm (default: Jobs)", "default": "Jobs"},
						"statistic": {"type": "string", "description": "Statistic to retrieve (default: total_cpu_hours)", "default": "total_cpu_hours"},
						"group_by": {"type": "string", "description": "Dimension to group by (default: person)", "default": "person"},
						"user_name": {"type": "string", "description": "Optional user name to filter results"}
					},
					"required": ["start_date", "end_date"]
				}`),
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				return getUsageData(ctx, client, args)
			},
		},
		{
			tool: registry.Tool{
				Name:        "discover_person_ids",
				Description: "Discover available person IDs and names in XDMoD",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"search_term": {"type": "string", "description": "Optional search term to filter person names"},
						"limit": {"type": "integer", "description": "Maximum number of results to return (default: 20)", "default": 20}
					},
					"required": []
				}`),
			},
			handler: func(ctx context.Context, args map[string]any) (any, error) {
				return discoverPersonIDs(ctx, client, args)
			},
		},
		{
			tool: registry.Tool{
				Name:        "debug_auth",
				Description: "Debug authentication and warehouse connectivity",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {},
					"required": []
				}`),
			},
			handler: func(_ context.Context, _ map[string]any) (any, error) {
				return debugAuth(client), nil
			},
		},
	}

	for _, t := range tools {
		if err := reg.Register(t.tool, t.handler); err != nil {
			return fmt.Errorf("registering %s: %w", t.tool.Name, err)
		}
	}
	return nil
}

// getUsageData queries the warehouse and renders a readable usage report.
func getUsageData(ctx context.Context, client *Client, args map[string]any) (string, error) {
	startDate := stringArg(args, "start_date", "")
	endDate := stringArg(args, "end_date", "")
	if startDate == "" || endDate == "" {
		return "", fmt.Errorf("start_date and end_date are required")
	}

	q := DataQuery{
		Realm:     stringArg(args, "realm", "Jobs"),
		Statistic: stringArg(args, "statistic", "total_cpu_hours"),
		GroupBy:   stringArg(args, "group_by", "person"),
		StartDate: startDate,
		EndDate:   endDate,
		Limit:     intArg(args, "limit", 100),
	}

	points, err := client.GetData(ctx, q)
	if err != nil {
		return "", err
	}

	userName := stringArg(args, "user_name", "")
	var matches []DataPoint
	if userName != "" {
		for _, p := range points {
			if strings.Contains(strings.ToLower(p.Name), strings.ToLower(userName)) {
				matches = append(matches, p)
			}
		}
	} else {
		matches = points
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Usage data: %s / %s grouped by %s\n", q.Realm, q.Statistic, q.GroupBy)
	fmt.Fprintf(&b, "Period: %s to %s\n\n", q.StartDate, q.EndDate)
	fmt.Fprintf(&b, "Total rows: %d\n", len(points))

	if userName != "" {
		fmt.Fprintf(&b, "Rows matching %q: %d\n", userName, len(matches))
	}
	b.WriteString("\n")

	if len(matches) == 0 {
		b.WriteString("No data found.\n")
		if userName != "" && len(points) > 0 {
			b.WriteString("\nSample rows:\n")
			for i, p := range points {
				if i >= 5 {
					break
				}
				fmt.Fprintf(&b, "- %s\n", p.Name)
			}
		}
		return b.String(), nil
	}

	var total float64
	for _, p := range matches {
		fmt.Fprintf(&b, "- %s: %g", p.Name, p.Value)
		if p.ID != "" {
			fmt.Fprintf(&b, " (person id %s)", p.ID)
		}
		b.WriteString("\n")
		total += p.Value
	}
	fmt.Fprintf(&b, "\nTotal %s: %g\n", q.Statistic, total)

	return b.String(), nil
}

// discoverPersonIDs lists person dimension values, optionally filtered.
func discoverPersonIDs(ctx context.Context, client *Client, args map[string]any) (string, error) {
	searchTerm := stringArg(args, "search_term", "")
	limit := intArg(args, "limit", 20)

	points, err := client.GetData(ctx, DataQuery{
		Realm:     "Jobs",
		GroupBy:   "person",
		Statistic: "total_cpu_hours",
		StartDate: "2016-01-01",
		EndDate:   "2030-01-01",
		Limit:     1000,
	})
	if err != nil {
		return "", err
	}

	var matches []DataPoint
	for _, p := range points {
		if searchTerm == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(searchTerm)) {
			matches = append(matches, p)
			if len(matches) >= limit {
				break
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })

	var b strings.Builder
	fmt.Fprintf(&b, "Person ID discovery\n\nFound %d total users\n\n", len(points))
	if len(matches) == 0 {
		fmt.Fprintf(&b, "No users matching %q found\n", searchTerm)
		return b.String(), nil
	}

	fmt.Fprintf(&b, "Matching users (%d shown):\n", len(matches))
	for _, p := range matches {
		fmt.Fprintf(&b, "- %s", p.Name)
		if p.ID != "" {
			fmt.Fprintf(&b, " (person id %s)", p.ID)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// debugAuth reports token presence and the configured endpoint.
func debugAuth(client *Client) string {
	var b strings.Builder
	b.WriteString("XDMoD MCP server debug\n\n")
	fmt.Fprintf(&b, "Warehouse: %s\n", client.BaseURL())
	fmt.Fprintf(&b, "API token present: %t\n", client.HasToken())
	if !client.HasToken() {
		b.WriteString("\nSet XDMOD_API_TOKEN (or xdmod.api_token in the config file) to enable data queries.\n")
	}
	return b.String()
}

// stringArg reads a string argument with a default.
func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

// intArg reads an integer argument with a default. JSON numbers arrive as
// float64.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
