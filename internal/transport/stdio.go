// ABOUTME: Single-session stdio transport reading newline-delimited JSON-RPC requests.
// ABOUTME: Each request is dispatched synchronously before the next line is read.

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/access-ci-org/xdmod-mcp/internal/protocol"
)

// maxLineSize is the maximum accepted request line (1MB).
const maxLineSize = 1 << 20

// Stdio serves the JSON-RPC dispatch loop over a line-oriented stream pair.
// One session is implicit; responses are written immediately, so no queue
// is involved.
type Stdio struct {
	dispatcher *protocol.Dispatcher
	in         io.Reader
	out        io.Writer
	logger     *slog.Logger
}

// NewStdio creates a stdio transport reading from in and writing to out.
func NewStdio(dispatcher *protocol.Dispatcher, in io.Reader, out io.Writer, logger *slog.Logger) *Stdio {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stdio{
		dispatcher: dispatcher,
		in:         in,
		out:        out,
		logger:     logger.With("component", "stdio"),
	}
}

// Run reads requests until EOF or context cancellation. A line that fails to
// parse as JSON is reported with a -32700 error envelope and skipped; the
// loop never terminates on malformed input.
func (t *Stdio) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req protocol.Request
		if err := json.Unmarshal(line, &req); err != nil {
			t.logger.Warn("malformed request line skipped", "error", err)
			if werr := t.write(protocol.NewError(nil, protocol.CodeParseError, "invalid JSON")); werr != nil {
				return werr
			}
			continue
		}

		resp := t.dispatcher.Dispatch(ctx, &req, nil)
		if resp == nil {
			continue
		}
		if err := t.write(resp); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return nil
}

// write serializes one response envelope as a single output line.
func (t *Stdio) write(resp *protocol.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	if _, err := t.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}
