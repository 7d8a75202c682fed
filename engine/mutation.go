package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/builtwitharvadai/autoselect-querycache/apierr"
	"github.com/builtwitharvadai/autoselect-querycache/querykey"
	"github.com/builtwitharvadai/autoselect-querycache/store"
)

// OptimisticUpdate rewrites one cached entry before the server
// confirms. Transform receives the current cached data (nil when the
// key has never been fetched) and returns the speculative value.
type OptimisticUpdate struct {
	Kind      string
	Params    any
	Transform func(current any) any
}

// InvalidationTarget names a key, or a whole kind, to mark stale after
// a mutation commits.
type InvalidationTarget struct {
	Kind   string
	Params any
	// WholeKind invalidates every cached key of Kind; Params is
	// ignored.
	WholeKind bool
}

// MutationRequest describes one server-side write.
type MutationRequest struct {
	// Kind labels the mutation in logs and metrics.
	Kind string
	// Execute performs the write. It runs exactly once; mutations are
	// never retried.
	Execute func(ctx context.Context) (any, error)

	// Optimistic updates are applied before Execute and rolled back to
	// their exact prior state when it fails.
	Optimistic []OptimisticUpdate

	// ApplyToKind/ApplyToParams name the cache key that receives the
	// server response as authoritative data on success. Empty kind
	// skips the write-back.
	ApplyToKind   string
	ApplyToParams any

	// Invalidates are processed after the authoritative write-back, so
	// their refetches observe the mutation's result.
	Invalidates []InvalidationTarget

	OnSuccess func(ctx context.Context, data any)
	OnError   func(ctx context.Context, err *apierr.Error)
}

// MutationResult reports the outcome of a mutation.
type MutationResult struct {
	Data any
	Err  *apierr.Error
}

type optimisticSnapshot struct {
	key     querykey.Key
	entry   store.Entry
	existed bool
}

// Mutate runs a server-side write with optimistic cache updates.
// Snapshots are taken before any speculative write; a failed Execute
// restores every touched entry to its exact prior state, including
// removing entries that did not exist. A mutation runs to completion
// even when the caller's context is cancelled, so the cache never
// diverges from a write the server may have applied.
func (e *Engine) Mutate(ctx context.Context, req MutationRequest) (*MutationResult, error) {
	if req.Execute == nil {
		return nil, fmt.Errorf("engine: mutation %q has no execute func", req.Kind)
	}
	e.metrics.add(ctx, e.metrics.mutations, req.Kind, 1)

	snapshots, err := e.applyOptimistic(ctx, req.Optimistic)
	if err != nil {
		return nil, err
	}

	mctx := context.WithoutCancel(ctx)
	data, execErr := req.Execute(mctx)
	if execErr != nil {
		apiErr := toAPIError(execErr)
		e.rollback(mctx, req.Kind, snapshots)
		if req.OnError != nil {
			req.OnError(mctx, apiErr)
		}
		return &MutationResult{Err: apiErr}, apiErr
	}

	if req.ApplyToKind != "" {
		if err := e.applyAuthoritative(mctx, req.ApplyToKind, req.ApplyToParams, data); err != nil {
			return nil, err
		}
	}

	for _, target := range req.Invalidates {
		if target.WholeKind {
			e.InvalidateKind(mctx, target.Kind)
			continue
		}
		if err := e.Invalidate(mctx, target.Kind, target.Params); err != nil {
			e.log.WarnCtx(mctx, "post-mutation invalidation failed",
				zap.String("mutation", req.Kind),
				zap.String("kind", target.Kind),
				zap.Error(err),
			)
		}
	}

	if req.OnSuccess != nil {
		req.OnSuccess(mctx, data)
	}
	e.log.DebugCtx(mctx, "mutation committed", zap.String("mutation", req.Kind))
	return &MutationResult{Data: data}, nil
}

func (e *Engine) applyOptimistic(ctx context.Context, updates []OptimisticUpdate) ([]optimisticSnapshot, error) {
	snapshots := make([]optimisticSnapshot, 0, len(updates))
	for _, upd := range updates {
		if upd.Transform == nil {
			continue
		}
		key, err := querykey.Normalize(upd.Kind, upd.Params)
		if err != nil {
			e.rollback(ctx, "", snapshots)
			return nil, err
		}

		var snap optimisticSnapshot
		snap.key = key
		snap.entry, snap.existed = e.store.Get(key)

		// A never-queried key still gets the kind's staleness and
		// collection windows, so the reconciled entry can be served
		// fresh and eventually swept.
		rc := e.cfg.resolve(upd.Kind)
		e.store.Ensure(key, upd.Params, rc.StaleAfter, rc.CollectAfter)

		e.store.Apply(key, func(en store.Entry) (store.Entry, bool) {
			en.Data = upd.Transform(en.Data)
			if en.Status == store.StatusIdle {
				en.Status = store.StatusSuccess
			}
			en.Params = upd.Params
			return en, true
		})
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// rollback restores snapshots in reverse order so overlapping updates
// unwind to the state before the first speculative write.
func (e *Engine) rollback(ctx context.Context, mutation string, snapshots []optimisticSnapshot) {
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if snap.existed {
			e.store.Replace(snap.key, snap.entry)
		} else {
			e.store.Delete(snap.key)
		}
		e.metrics.add(ctx, e.metrics.rollbacks, snap.key.Kind(), 1)
	}
	if len(snapshots) > 0 {
		e.log.DebugCtx(ctx, "optimistic updates rolled back",
			zap.String("mutation", mutation),
			zap.Int("entries", len(snapshots)),
		)
	}
}

// applyAuthoritative writes the server response into the cache as a
// fresh success and forgets any in-flight fetch for the key, which now
// belongs to an older generation.
func (e *Engine) applyAuthoritative(ctx context.Context, kind string, params any, data any) error {
	key, err := querykey.Normalize(kind, params)
	if err != nil {
		return err
	}
	rc := e.cfg.resolve(kind)
	e.store.Ensure(key, params, rc.StaleAfter, rc.CollectAfter)
	fetchedAt := e.now()
	e.store.Apply(key, func(en store.Entry) (store.Entry, bool) {
		en.Data = data
		en.Status = store.StatusSuccess
		en.Err = nil
		en.FetchedAt = fetchedAt
		en.Generation++
		if en.StaleAfter <= 0 {
			en.StaleAfter = rc.StaleAfter
		}
		if en.CollectAfter <= 0 {
			en.CollectAfter = rc.CollectAfter
		}
		return en, true
	})
	e.sf.Forget(key.String())
	return nil
}
