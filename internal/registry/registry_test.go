// ABOUTME: Tests for the static tool registry and the auditing decorator.
// ABOUTME: Validates registration order, collisions, and invocation recording.

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaOnly() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}

func TestStaticRegisterAndCall(t *testing.T) {
	reg := NewStatic(nil)

	err := reg.Register(Tool{Name: "upper", Description: "Upcases", InputSchema: schemaOnly()},
		func(_ context.Context, args map[string]any) (any, error) {
			s, _ := args["s"].(string)
			return "UPPER:" + s, nil
		})
	require.NoError(t, err)

	result, err := reg.Call(context.Background(), "upper", map[string]any{"s": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "UPPER:hi", result)
}

func TestStaticToolsPreserveRegistrationOrder(t *testing.T) {
	reg := NewStatic(nil)

	names := []string{"zeta", "alpha", "mid"}
	for _, name := range names {
		err := reg.Register(Tool{Name: name, InputSchema: schemaOnly()},
			func(_ context.Context, _ map[string]any) (any, error) { return nil, nil })
		require.NoError(t, err)
	}

	tools := reg.Tools()
	require.Len(t, tools, len(names))
	for i, name := range names {
		assert.Equal(t, name, tools[i].Name)
	}
}

func TestStaticRejectsDuplicateNames(t *testing.T) {
	reg := NewStatic(nil)
	handler := func(_ context.Context, _ map[string]any) (any, error) { return nil, nil }

	require.NoError(t, reg.Register(Tool{Name: "dup", InputSchema: schemaOnly()}, handler))
	err := reg.Register(Tool{Name: "dup", InputSchema: schemaOnly()}, handler)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolCollision)
	assert.Len(t, reg.Tools(), 1)
}

func TestStaticCallUnknownTool(t *testing.T) {
	reg := NewStatic(nil)

	_, err := reg.Call(context.Background(), "ghost", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.Contains(t, err.Error(), "'ghost'")
}

func TestStaticCallNilArguments(t *testing.T) {
	reg := NewStatic(nil)

	err := reg.Register(Tool{Name: "probe", InputSchema: schemaOnly()},
		func(_ context.Context, args map[string]any) (any, error) {
			require.NotNil(t, args)
			return len(args), nil
		})
	require.NoError(t, err)

	result, err := reg.Call(context.Background(), "probe", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result)
}

// memRecorder captures invocations in memory for assertions.
type memRecorder struct {
	records []*Invocation
	fail    error
}

func (r *memRecorder) RecordInvocation(_ context.Context, inv *Invocation) error {
	if r.fail != nil {
		return r.fail
	}
	r.records = append(r.records, inv)
	return nil
}

func TestAuditedRecordsSuccessfulCalls(t *testing.T) {
	reg := NewStatic(nil)
	require.NoError(t, reg.Register(Tool{Name: "ok", InputSchema: schemaOnly()},
		func(_ context.Context, _ map[string]any) (any, error) {
			time.Sleep(time.Millisecond)
			return "fine", nil
		}))

	rec := &memRecorder{}
	audited := NewAudited(reg, rec, nil)

	result, err := audited.Call(context.Background(), "ok", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "fine", result)

	require.Len(t, rec.records, 1)
	inv := rec.records[0]
	assert.Equal(t, "ok", inv.Tool)
	assert.Equal(t, map[string]any{"k": "v"}, inv.Arguments)
	assert.NoError(t, inv.Err)
	assert.Greater(t, inv.Duration, time.Duration(0))
	assert.False(t, inv.StartedAt.IsZero())
}

func TestAuditedRecordsFailures(t *testing.T) {
	reg := NewStatic(nil)
	boom := errors.New("warehouse unreachable")
	require.NoError(t, reg.Register(Tool{Name: "bad", InputSchema: schemaOnly()},
		func(_ context.Context, _ map[string]any) (any, error) { return nil, boom }))

	rec := &memRecorder{}
	audited := NewAudited(reg, rec, nil)

	_, err := audited.Call(context.Background(), "bad", nil)
	require.ErrorIs(t, err, boom)

	require.Len(t, rec.records, 1)
	assert.ErrorIs(t, rec.records[0].Err, boom)
}

func TestAuditedRecordsUnknownToolProbes(t *testing.T) {
	rec := &memRecorder{}
	audited := NewAudited(NewStatic(nil), rec, nil)

	_, err := audited.Call(context.Background(), "ghost", nil)
	require.ErrorIs(t, err, ErrToolNotFound)

	require.Len(t, rec.records, 1)
	assert.Equal(t, "ghost", rec.records[0].Tool)
}

func TestAuditedToleratesRecorderFailure(t *testing.T) {
	reg := NewStatic(nil)
	require.NoError(t, reg.Register(Tool{Name: "ok", InputSchema: schemaOnly()},
		func(_ context.Context, _ map[string]any) (any, error) { return "fine", nil }))

	rec := &memRecorder{fail: errors.New("disk full")}
	audited := NewAudited(reg, rec, nil)

	// The tool result must survive a recorder failure.
	result, err := audited.Call(context.Background(), "ok", nil)
	require.NoError(t, err)
	assert.Equal(t, "fine", result)
}

func TestAuditedExposesInnerTools(t *testing.T) {
	reg := NewStatic(nil)
	require.NoError(t, reg.Register(Tool{Name: "only", InputSchema: schemaOnly()},
		func(_ context.Context, _ map[string]any) (any, error) { return nil, nil }))

	audited := NewAudited(reg, &memRecorder{}, nil)
	tools := audited.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "only", tools[0].Name)
}
