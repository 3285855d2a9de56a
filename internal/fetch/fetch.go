// Package fetch queries several providers for the same book concurrently and
// collects their answers keyed by provider.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/bookmeta/internal/metrics"
	"github.com/lepinkainen/bookmeta/internal/provider"
)

const (
	// DefaultTimeout bounds a single provider lookup.
	DefaultTimeout = 30 * time.Second
	// DefaultDetailLimit is how many previews per provider a search expands.
	DefaultDetailLimit = 3
)

// Orchestrator fans a query out to registered providers.
type Orchestrator struct {
	registry    *provider.Registry
	timeout     time.Duration
	detailLimit int
}

// Option is a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the per-provider timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithDetailLimit sets how many previews per provider SearchInterleaved
// expands.
func WithDetailLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.detailLimit = n
		}
	}
}

// New creates an Orchestrator over registry.
func New(registry *provider.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:    registry,
		timeout:     DefaultTimeout,
		detailLimit: DefaultDetailLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchAll asks every provider for its best match. Providers that fail,
// panic, time out or find nothing are absent from the result; the call only
// fails when a provider is not registered, and then before any lookup
// starts.
func (o *Orchestrator) FetchAll(ctx context.Context, q provider.Query, ids []provider.ID) (map[provider.ID]*provider.Metadata, error) {
	adapters, err := o.adapters(ids)
	if err != nil {
		return nil, err
	}

	// Each task owns one slot, so no locking is needed.
	slots := make([]*provider.Metadata, len(adapters))
	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			slots[i] = o.fetchTop(ctx, a, q)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[provider.ID]*provider.Metadata, len(adapters))
	for i, a := range adapters {
		if slots[i] == nil {
			continue
		}
		if _, seen := results[a.ID()]; seen {
			continue
		}
		results[a.ID()] = slots[i]
	}
	return results, nil
}

// SearchInterleaved collects up to the detail limit of detailed candidates
// from each provider and interleaves them round-robin in provider order.
// Failing providers contribute nothing.
func (o *Orchestrator) SearchInterleaved(ctx context.Context, q provider.Query, ids []provider.ID) ([]provider.Metadata, error) {
	adapters, err := o.adapters(ids)
	if err != nil {
		return nil, err
	}

	lists := make([][]provider.Metadata, len(adapters))
	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			lists[i] = o.search(ctx, a, q)
			return nil
		})
	}
	_ = g.Wait()

	return interleave(lists), nil
}

// adapters deduplicates ids keeping the first occurrence and resolves each
// one.
func (o *Orchestrator) adapters(ids []provider.ID) ([]provider.Adapter, error) {
	var unique []provider.ID
	for _, id := range ids {
		if !slices.Contains(unique, id) {
			unique = append(unique, id)
		}
	}

	out := make([]provider.Adapter, 0, len(unique))
	for _, id := range unique {
		a, err := o.registry.Get(id)
		if err != nil {
			return nil, fmt.Errorf("resolving providers: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (o *Orchestrator) fetchTop(ctx context.Context, a provider.Adapter, q provider.Query) (md *provider.Metadata) {
	id := a.ID()
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Provider panicked", "provider", id, "book_id", q.BookID, "panic", r)
			md = nil
			outcome = metrics.OutcomePanic
		}
		metrics.RecordProviderCall(string(id), outcome, start)
	}()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := a.FetchTop(ctx, q)
	if err != nil {
		slog.Error("Provider fetch failed", "provider", id, "book_id", q.BookID, "error", err)
		return nil
	}
	if res == nil {
		outcome = metrics.OutcomeEmpty
		slog.Debug("Provider found no match", "provider", id, "book_id", q.BookID)
		return nil
	}
	outcome = metrics.OutcomeOK
	if res.Provider == "" {
		res.Provider = id
	}
	return res
}

func (o *Orchestrator) search(ctx context.Context, a provider.Adapter, q provider.Query) (out []provider.Metadata) {
	id := a.ID()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Provider panicked during search", "provider", id, "panic", r)
			out = nil
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	previews, err := a.SearchPreviews(ctx, q)
	if err != nil {
		slog.Error("Provider search failed", "provider", id, "error", err)
		return nil
	}
	if len(previews) > o.detailLimit {
		previews = previews[:o.detailLimit]
	}
	if len(previews) == 0 {
		return nil
	}

	detailed, err := a.FetchDetails(ctx, previews)
	if err != nil {
		slog.Error("Provider detail fetch failed", "provider", id, "error", err)
		return nil
	}
	return detailed
}

func interleave(lists [][]provider.Metadata) []provider.Metadata {
	var out []provider.Metadata
	for i := 0; ; i++ {
		added := false
		for _, list := range lists {
			if i < len(list) {
				out = append(out, list[i])
				added = true
			}
		}
		if !added {
			return out
		}
	}
}
