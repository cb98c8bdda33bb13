package hooks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(0, zap.NewNop().Sugar())
}

func TestDispatcher_PreHooksRunInPriorityOrder(t *testing.T) {
	d := newTestDispatcher()
	var order []string

	record := func(name string) PreHookFunc {
		return func(ctx context.Context, hctx Context, payload any) (any, error) {
			order = append(order, name)
			return nil, nil
		}
	}

	d.RegisterPre(EntityIOC, EventCreate, 20, "second", record("second"))
	d.RegisterPre(EntityIOC, EventCreate, 10, "first", record("first"))
	d.RegisterPre(EntityIOC, EventCreate, 20, "third", record("third"))

	_, err := d.DispatchPre(context.Background(), Context{Entity: EntityIOC, Event: EventCreate}, "payload")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, order,
		"Ascending priority, registration order on ties")
}

func TestDispatcher_PreHookTransformsChain(t *testing.T) {
	d := newTestDispatcher()

	d.RegisterPre(EntityIOC, EventCreate, 10, "upper", func(ctx context.Context, hctx Context, payload any) (any, error) {
		return strings.ToUpper(payload.(string)), nil
	})
	d.RegisterPre(EntityIOC, EventCreate, 20, "keep", func(ctx context.Context, hctx Context, payload any) (any, error) {
		// nil keeps the predecessor's payload
		return nil, nil
	})
	d.RegisterPre(EntityIOC, EventCreate, 30, "suffix", func(ctx context.Context, hctx Context, payload any) (any, error) {
		return payload.(string) + "!", nil
	})

	result, err := d.DispatchPre(context.Background(), Context{Entity: EntityIOC, Event: EventCreate}, "value")
	require.NoError(t, err)
	assert.Equal(t, "VALUE!", result, "Each hook sees the payload as left by its predecessors")
}

func TestDispatcher_PreHookErrorAborts(t *testing.T) {
	d := newTestDispatcher()
	var reached bool

	d.RegisterPre(EntityCase, EventDelete, 10, "gate", func(ctx context.Context, hctx Context, payload any) (any, error) {
		return nil, errors.New("case still has open tasks")
	})
	d.RegisterPre(EntityCase, EventDelete, 20, "later", func(ctx context.Context, hctx Context, payload any) (any, error) {
		reached = true
		return nil, nil
	})

	_, err := d.DispatchPre(context.Background(), Context{Entity: EntityCase, Event: EventDelete}, "case-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gate", "The error should name the failing hook")
	assert.False(t, reached, "Hooks after an abort must not run")
}

func TestDispatcher_NoHooksPassesPayloadThrough(t *testing.T) {
	d := newTestDispatcher()

	result, err := d.DispatchPre(context.Background(), Context{Entity: EntityTask, Event: EventUpdate}, "untouched")
	require.NoError(t, err)
	assert.Equal(t, "untouched", result)
}

func TestDispatcher_PostHookFailureIsolated(t *testing.T) {
	d := newTestDispatcher()
	var ran []string

	d.RegisterPost(EntityIOC, EventCreate, 10, "boom", func(ctx context.Context, hctx Context, entity any) error {
		ran = append(ran, "boom")
		return errors.New("webhook endpoint unreachable")
	})
	d.RegisterPost(EntityIOC, EventCreate, 20, "after", func(ctx context.Context, hctx Context, entity any) error {
		ran = append(ran, "after")
		return nil
	})

	// Must not panic or propagate despite the first hook failing.
	d.DispatchPost(context.Background(), Context{Entity: EntityIOC, Event: EventCreate}, "entity")
	assert.Equal(t, []string{"boom", "after"}, ran, "Later post-hooks still run after a failure")
}

func TestDispatcher_HooksScopedToEntityAndEvent(t *testing.T) {
	d := newTestDispatcher()
	var calls int

	d.RegisterPre(EntityIOC, EventCreate, 10, "ioc-only", func(ctx context.Context, hctx Context, payload any) (any, error) {
		calls++
		return nil, nil
	})

	_, err := d.DispatchPre(context.Background(), Context{Entity: EntityTask, Event: EventCreate}, "x")
	require.NoError(t, err)
	_, err = d.DispatchPre(context.Background(), Context{Entity: EntityIOC, Event: EventDelete}, "x")
	require.NoError(t, err)
	assert.Zero(t, calls, "Hooks only fire for their registered entity and event")
}

func TestDispatcher_HookRunsUnderBudget(t *testing.T) {
	d := NewDispatcher(50*time.Millisecond, zap.NewNop().Sugar())

	d.RegisterPre(EntityIOC, EventCreate, 10, "slow", func(ctx context.Context, hctx Context, payload any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return payload, nil
		}
	})

	start := time.Now()
	_, err := d.DispatchPre(context.Background(), Context{Entity: EntityIOC, Event: EventCreate}, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "The budget should cut the hook off")
}

func TestDispatcher_ContextCarriesDispatchDetails(t *testing.T) {
	d := newTestDispatcher()
	var seen Context

	d.RegisterPre(EntityTask, EventUpdate, 10, "inspect", func(ctx context.Context, hctx Context, payload any) (any, error) {
		seen = hctx
		return nil, nil
	})

	hctx := Context{Entity: EntityTask, Event: EventUpdate, CaseID: "case-9", ActorID: "user-3"}
	_, err := d.DispatchPre(context.Background(), hctx, "x")
	require.NoError(t, err)
	assert.Equal(t, hctx, seen)
}
