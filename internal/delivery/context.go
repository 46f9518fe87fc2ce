package delivery

import "context"

type runIDKey struct{}

// WithRunID returns a context carrying runID, so adapters that need to tag
// events by run (currently only WebAdapter) can read it without widening
// the Adapter interface for every other adapter kind.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id stashed by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey{}).(string)
	return v
}
