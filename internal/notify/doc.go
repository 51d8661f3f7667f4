// Package notify implements the Notification Coordinator component.
//
// Reconciliation outcomes become a bounded, de-duplicated stack of
// user-facing notifications. Visual dedup never suppresses the audio cue:
// on a noisy shop floor the sound is the primary attention signal and
// dedup is purely a screen-clutter concern.
package notify
