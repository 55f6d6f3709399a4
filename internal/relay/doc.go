// Package relay provides the HTTP implementation of domain.RelayClient
// used by cipherchat.
//
// The relay is a store-and-forward service between peers. It holds public
// keys, group records, wrapped group keys and encrypted envelopes, and
// pushes new envelopes over a websocket. This package is the client side;
// the server lives in relay/server.
//
// Supported operations include:
//   - Publishing and fetching X25519 public keys.
//   - Creating groups, changing membership and advancing key versions.
//   - Publishing, fetching and deleting wrapped key packages.
//   - Sending, fetching and acknowledging direct envelopes.
//   - Sending and fetching group envelopes.
//   - Subscribing to pushed envelopes.
//
// All requests are JSON over HTTP and accept a context for cancellation and
// deadlines. A 404 is reported as ErrNotFound; other non-2xx statuses are
// returned as errors with the method, path, status and the relay's message.
package relay
