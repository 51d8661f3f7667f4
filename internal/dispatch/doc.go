// Package dispatch implements the Event Dispatcher component.
//
// The dispatcher decouples push-transport message reception from business
// consumers:
//   - Bus: pub-sub registry keyed by event kind (quick_check_update,
//     status_update, authenticated, auth_error, heartbeat, pong)
//   - Registry: a generic last-value registry with replay-on-subscribe,
//     used for connection state transitions
//
// Callbacks run in subscription order on the publishing goroutine. A
// panicking subscriber never prevents later subscribers from running.
package dispatch
