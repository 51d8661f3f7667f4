// Package reconcile implements the Reconciliation Engine component.
//
// The Board owns the two ordered quick-check collections (in-progress and
// submitted) and is their sole writer. Mutation events merge into the
// collections incrementally; there is no full refetch on change.
//
// Guarantees:
//   - a record id appears in at most one collection at any time
//   - inserts go to the head (newest first); untouched records keep order
//   - applying the same event twice converges to the same state as once
//   - malformed events are dropped, never corrupt the collections
package reconcile
