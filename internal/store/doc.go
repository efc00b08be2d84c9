// Package store provides the SQLite-backed audit log for tool invocations.
//
// # Overview
//
// Every tool call made through an audited registry is persisted as one
// InvocationRecord: which tool ran, the arguments it received, whether it
// succeeded, and how long it took. The log answers "who asked the warehouse
// for what" after the fact.
//
// # Data Model
//
//   - InvocationRecord: One completed tool call with outcome and timing
//   - InvocationFilter: Tool-name, time-window, and limit filters for listing
//
// # SQLite Configuration
//
// The store uses SQLite (modernc.org/sqlite, pure Go) with WAL mode for
// concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//
// The schema is created automatically on open, as are missing parent
// directories of the database path.
//
// # Usage
//
// Open a store and plug it into an audited registry:
//
//	s, err := store.NewSQLiteStore("/var/lib/xdmod-mcp/audit.db", logger)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	reg := registry.NewAudited(static, s, logger)
//
// Query the trail:
//
//	records, err := s.ListInvocations(ctx, store.InvocationFilter{Tool: "get_usage_data"})
//
// Recording failures never fail the tool call itself; the audited registry
// logs and continues.
package store
