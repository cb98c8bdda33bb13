package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"casetrack/metrics"

	"go.uber.org/zap"
)

// Entity and event names hooks can attach to.
const (
	EntityCase = "case"
	EntityTask = "task"
	EntityIOC  = "ioc"

	EventCreate = "create"
	EventUpdate = "update"
	EventDelete = "delete"
)

// DefaultBudget bounds a single hook invocation unless configured otherwise.
const DefaultBudget = 5 * time.Second

// Context carries the dispatch circumstances into each hook.
type Context struct {
	Entity  string
	Event   string
	CaseID  string
	ActorID string
}

// PreHookFunc runs before the mutation is applied. It may transform the
// proposed payload by returning a non-nil value, or abort the whole operation
// by returning an error. A nil result keeps the previous payload.
type PreHookFunc func(ctx context.Context, hctx Context, payload any) (any, error)

// PostHookFunc runs after the mutation has durably committed. Its error is
// logged and counted but never propagated.
type PostHookFunc func(ctx context.Context, hctx Context, entity any) error

type preHook struct {
	name     string
	priority int
	seq      int
	fn       PreHookFunc
}

type postHook struct {
	name     string
	priority int
	seq      int
	fn       PostHookFunc
}

// Dispatcher routes entity lifecycle events through registered hooks in
// deterministic order: ascending priority, registration order on ties.
type Dispatcher struct {
	mu     sync.RWMutex
	pre    map[string][]preHook
	post   map[string][]postHook
	seq    int
	budget time.Duration
	logger *zap.SugaredLogger
}

// NewDispatcher creates a hook dispatcher. A non-positive budget falls back
// to DefaultBudget.
func NewDispatcher(budget time.Duration, logger *zap.SugaredLogger) *Dispatcher {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Dispatcher{
		pre:    make(map[string][]preHook),
		post:   make(map[string][]postHook),
		budget: budget,
		logger: logger,
	}
}

func key(entity, event string) string {
	return entity + ":" + event
}

// RegisterPre attaches a pre-mutation hook to an (entity, event) pair.
func (d *Dispatcher) RegisterPre(entity, event string, priority int, name string, fn PreHookFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := key(entity, event)
	d.seq++
	d.pre[k] = append(d.pre[k], preHook{name: name, priority: priority, seq: d.seq, fn: fn})
	sort.SliceStable(d.pre[k], func(i, j int) bool {
		if d.pre[k][i].priority != d.pre[k][j].priority {
			return d.pre[k][i].priority < d.pre[k][j].priority
		}
		return d.pre[k][i].seq < d.pre[k][j].seq
	})
	d.logger.Infow("Pre-hook registered", "entity", entity, "event", event, "hook", name, "priority", priority)
}

// RegisterPost attaches a post-commit hook to an (entity, event) pair.
func (d *Dispatcher) RegisterPost(entity, event string, priority int, name string, fn PostHookFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := key(entity, event)
	d.seq++
	d.post[k] = append(d.post[k], postHook{name: name, priority: priority, seq: d.seq, fn: fn})
	sort.SliceStable(d.post[k], func(i, j int) bool {
		if d.post[k][i].priority != d.post[k][j].priority {
			return d.post[k][i].priority < d.post[k][j].priority
		}
		return d.post[k][i].seq < d.post[k][j].seq
	})
	d.logger.Infow("Post-hook registered", "entity", entity, "event", event, "hook", name, "priority", priority)
}

// DispatchPre chains the registered pre-hooks over the proposed payload.
// Each hook sees the payload as left by its predecessors; the first error
// aborts the chain and the operation.
func (d *Dispatcher) DispatchPre(ctx context.Context, hctx Context, payload any) (any, error) {
	d.mu.RLock()
	chain := d.pre[key(hctx.Entity, hctx.Event)]
	d.mu.RUnlock()

	for _, h := range chain {
		result, err := d.invokePre(ctx, h, hctx, payload)
		if err != nil {
			metrics.HookFailures.WithLabelValues(hctx.Entity, hctx.Event, "pre").Inc()
			return nil, fmt.Errorf("hook %q rejected %s %s: %w", h.name, hctx.Entity, hctx.Event, err)
		}
		if result != nil {
			payload = result
		}
	}
	return payload, nil
}

func (d *Dispatcher) invokePre(ctx context.Context, h preHook, hctx Context, payload any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, d.budget)
	defer cancel()
	return h.fn(ctx, hctx, payload)
}

// DispatchPost invokes the registered post-hooks with the committed entity.
// Failures are logged and counted; the committed mutation stands regardless.
func (d *Dispatcher) DispatchPost(ctx context.Context, hctx Context, entity any) {
	d.mu.RLock()
	chain := d.post[key(hctx.Entity, hctx.Event)]
	d.mu.RUnlock()

	for _, h := range chain {
		if err := d.invokePost(ctx, h, hctx, entity); err != nil {
			metrics.HookFailures.WithLabelValues(hctx.Entity, hctx.Event, "post").Inc()
			d.logger.Warnw("Post-hook failed",
				"hook", h.name,
				"entity", hctx.Entity,
				"event", hctx.Event,
				"case_id", hctx.CaseID,
				"error", err,
			)
		}
	}
}

func (d *Dispatcher) invokePost(ctx context.Context, h postHook, hctx Context, entity any) error {
	ctx, cancel := context.WithTimeout(ctx, d.budget)
	defer cancel()
	return h.fn(ctx, hctx, entity)
}
