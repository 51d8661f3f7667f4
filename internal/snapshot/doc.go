// Package snapshot hydrates the reconciliation board from the REST API.
//
// A full snapshot runs at startup and again after every reconnect, since
// mutations broadcast while the socket was down are gone for good. The
// websocket feed then keeps the board current between snapshots.
package snapshot
