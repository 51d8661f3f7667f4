// Package api provides access to the QuickCheck REST API.
//
// The websocket feed carries incremental mutations only; the REST API is
// the source of truth for full snapshots and for the explicit user
// actions (archive, delete, submit) that the server then fans back out
// over the feed. All requests carry a bearer token and retry transient
// failures with jittered exponential backoff.
package api
