// Package model defines the core data types for quick-check synchronization.
//
// Key types:
//   - Inspection: a single quick check, the unit of reconciliation
//   - Payload: the domain fields of a quick check (typed, plus open extras)
//   - MutationEvent: a server-pushed change to a quick check
//
// Wire parsing for the push channel's quick_check_update envelope lives
// here so that consumers never touch raw JSON.
package model
