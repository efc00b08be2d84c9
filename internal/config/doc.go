// Package config handles configuration loading for xdmod-mcp.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults; the server runs with
// no config file at all when XDMOD_API_TOKEN is set.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from XDMOD_MCP_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/xdmod-mcp/config.yaml
//  3. ~/.config/xdmod-mcp/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	xdmod:
//	  api_token: "${XDMOD_API_TOKEN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	xdmod:
//	  timeout: "30s"
//	sse:
//	  keepalive: "30s"
//
// # Configuration Sections
//
// Server settings (HTTP mode only):
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Warehouse connection:
//
//	xdmod:
//	  base_url: "https://xdmod.access-ci.org"
//	  api_token: "${XDMOD_API_TOKEN}"
//	  timeout: "30s"
//
// Streaming:
//
//	sse:
//	  keepalive: "30s"
//
// Invocation auditing (disabled when path is empty):
//
//	audit:
//	  path: "/var/lib/xdmod-mcp/audit.db"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - xdmod.base_url is present
//   - sse.keepalive is not negative
//   - logging.format is "text" or "json"
//   - Duration format validity
package config
