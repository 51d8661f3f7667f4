// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains exactly one logical push connection per process
//   - Layers an authenticate handshake on top of the WebSocket transport
//   - Sends an application-level ping every 30s to keep proxies from
//     idling the connection
//   - Reconnects with exponential backoff (1s doubling to 30s, 10 attempts)
//   - Re-resolves the endpoint periodically and reconnects on change
//   - Publishes every inbound message to the event bus and every state
//     transition to the status registry
package connection
