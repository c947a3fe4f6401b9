// Package sources implements the locate pipeline's source cascade:
// InternalSource (crowd-sourced data), FallbackSource (external HTTP
// service), and GeoIPSource, run in declared order by Run, with early
// termination as soon as the accumulated results satisfy the query's
// expected accuracy (spec.md §4.4).
package sources

import (
	"context"

	"github.com/ichnaea-go/locate/pkg/locate/query"
	"github.com/ichnaea-go/locate/pkg/locate/result"
	"github.com/ichnaea-go/locate/pkg/tracing"
)

// Source is the capability every concrete source exposes: whether it
// is even applicable given the query and what's been accumulated so
// far, and the search itself. Each concrete source is a flat struct
// implementing this interface directly; there is no type hierarchy
// (InternalSource, for instance, composes its own private Wi-Fi, cell
// and MCC search steps).
type Source interface {
	// Name is the stats tag this source reports under.
	Name() string
	// ShouldSearch reports whether this source is applicable at all,
	// given the validated query and the results accumulated so far.
	ShouldSearch(q *query.Query, accumulated *result.ResultList) bool
	// Search attempts to answer the query. A source that finds nothing
	// returns an empty Result; it never returns an error, per spec.md
	// §7's "source-level failure is absorbed locally" policy.
	Search(ctx context.Context, q *query.Query) result.Result
}

// Run executes sources in their declared order, skipping any whose
// ShouldSearch reports false (no stats emitted for a skipped source),
// accumulating each result, and stopping as soon as the accumulated
// best result satisfies the query's expected accuracy. It always
// emits the final per-query result stats, even if no source ran.
func Run(ctx context.Context, q *query.Query, srcs []Source) result.Result {
	ctx, span := tracing.StartSpan(ctx, "locate.sources.run")
	defer span.End()
	span.SetAttributes(tracing.QueryAttributes(string(q.APIType), q.ExpectedAccuracy().String(), q.Region)...)

	var results result.ResultList

	for _, src := range srcs {
		if !src.ShouldSearch(q, &results) {
			continue
		}

		r := runOne(ctx, src, q)
		results.Add(r)
		q.EmitSourceStats(src.Name(), r)

		if results.Satisfies(q.ExpectedAccuracy()) {
			break
		}
	}

	best := results.Best()
	q.EmitResultStats(best)
	return best
}

func runOne(ctx context.Context, src Source, q *query.Query) result.Result {
	ctx, span := tracing.StartSpan(ctx, "locate.source."+src.Name())
	defer span.End()

	r := src.Search(ctx, q)

	status := tracing.StatusSuccess
	if r.Empty() {
		status = "empty"
	}
	span.SetAttributes(tracing.SourceAttributes(src.Name(), status)...)
	return r
}
