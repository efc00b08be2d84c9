// ABOUTME: Entry point for the xdmod-mcp tool server
// ABOUTME: Runs over stdio by default, or HTTP+SSE when PORT is set

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/access-ci-org/xdmod-mcp/internal/config"
	"github.com/access-ci-org/xdmod-mcp/internal/protocol"
	"github.com/access-ci-org/xdmod-mcp/internal/registry"
	"github.com/access-ci-org/xdmod-mcp/internal/store"
	"github.com/access-ci-org/xdmod-mcp/internal/transport"
	"github.com/access-ci-org/xdmod-mcp/internal/xdmod"
)

const serverName = "xdmod-mcp"

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
          _                     _
 __  ____| |_ __ ___   ___   __| |      _ __ ___   ___ _ __
 \ \/ / _' | '_ ' _ \ / _ \ / _' |_____| '_ ' _ \ / __| '_ \
  >  < (_| | | | | | | (_) | (_| |_____| | | | | | (__| |_) |
 /_/\_\__,_|_| |_| |_|\___/ \__,_|     |_| |_| |_|\___| .__/
                                                      |_|
`

// getConfigPath returns the path to the server config file.
// Priority: XDMOD_MCP_CONFIG env var > XDG_CONFIG_HOME/xdmod-mcp/config.yaml > ~/.config/xdmod-mcp/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("XDMOD_MCP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "xdmod-mcp", "config.yaml")
}

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch command {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "init":
		err = runInit()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		fmt.Fprintln(os.Stderr, "Usage: xdmod-mcp <command>")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  serve   Start the server (default; stdio mode, or HTTP when PORT is set)")
		fmt.Fprintln(os.Stderr, "  health  Check the health of a running HTTP instance")
		fmt.Fprintln(os.Stderr, "  init    Write a starter config file")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file if present, otherwise returns defaults.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.Default(), "", nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// PORT selects HTTP mode; absent means stdio.
	httpAddr := ""
	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		httpAddr = ":" + port
	} else if len(os.Args) > 2 && os.Args[2] == "--http" {
		httpAddr = cfg.Server.HTTPAddr
	}

	logger := setupLogger(cfg.Logging)

	reg, closer, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	dispatcher := protocol.NewDispatcher(reg, serverName, version, logger)

	if httpAddr == "" {
		logger.Info("starting stdio transport", "server", serverName, "version", version)
		stdio := transport.NewStdio(dispatcher, os.Stdin, os.Stdout, logger)
		return stdio.Run(ctx)
	}

	// Banner only in HTTP mode; stdout belongs to the protocol on stdio.
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	green := color.New(color.FgGreen)
	if configPath != "" {
		green.Print("    > ")
		fmt.Printf("Config:    %s\n", configPath)
	}
	green.Print("    > ")
	fmt.Printf("HTTP:      %s\n", httpAddr)
	green.Print("    > ")
	fmt.Printf("Warehouse: %s\n", cfg.XDMoD.BaseURL)
	if cfg.Audit.Path != "" {
		green.Print("    > ")
		fmt.Printf("Audit:     %s\n", cfg.Audit.Path)
	}
	fmt.Println()

	logger.Info("starting xdmod-mcp",
		"http_addr", httpAddr,
		"warehouse", cfg.XDMoD.BaseURL,
	)

	srv, err := transport.NewHTTPServer(transport.HTTPConfig{
		Dispatcher: dispatcher,
		Keepalive:  cfg.SSE.Keepalive,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating HTTP server: %w", err)
	}
	return srv.Run(ctx, httpAddr)
}

// buildRegistry assembles the tool registry, wrapping it with the SQLite
// audit recorder when configured. The returned closer is nil when auditing
// is disabled.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (registry.Registry, io.Closer, error) {
	static := registry.NewStatic(logger)
	client := xdmod.NewClient(cfg.XDMoD.BaseURL, cfg.XDMoD.APIToken, cfg.XDMoD.Timeout, logger)
	if err := xdmod.RegisterTools(static, client); err != nil {
		return nil, nil, fmt.Errorf("registering tools: %w", err)
	}

	if cfg.Audit.Path == "" {
		return static, nil, nil
	}

	s, err := store.NewSQLiteStore(cfg.Audit.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit store: %w", err)
	}
	return registry.NewAudited(static, s, logger), s, nil
}

// setupLogger builds the process logger. Output always goes to stderr so the
// stdio transport keeps stdout for the protocol channel.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			level: level,
			out:   os.Stderr,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	out    io.Writer
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(h.out, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		out:    h.out,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		out:    h.out,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := cfg.Server.HTTPAddr
	if port := os.Getenv("PORT"); port != "" {
		addr = "localhost:" + port
	}
	addr = strings.TrimPrefix(addr, "0.0.0.0")
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	url := fmt.Sprintf("http://%s/health", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runInit writes a starter config file. Refuses to overwrite an existing one.
func runInit() error {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	content := `# xdmod-mcp configuration
# Generated by xdmod-mcp init

server:
  http_addr: "0.0.0.0:8080"

xdmod:
  base_url: "https://xdmod.access-ci.org"
  api_token: "${XDMOD_API_TOKEN}"
  timeout: "30s"

sse:
  keepalive: "30s"

# Uncomment to record tool invocations to a SQLite audit log.
# audit:
#   path: "/var/lib/xdmod-mcp/audit.db"

logging:
  level: "info"
  format: "text"
`

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  Created config: %s\n", configPath)
	return nil
}
