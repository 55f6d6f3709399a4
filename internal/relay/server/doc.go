// Package server is the cipherchat relay: a store-and-forward service for
// public keys, group records, wrapped group keys and encrypted envelopes.
//
// HTTP API
//
//	PUT    /keys/{user}                      {"public_key": hex}
//	GET    /keys/{user}
//	POST   /groups                           Group
//	GET    /groups/{group}
//	POST   /groups/{group}/members           {"member": user}
//	DELETE /groups/{group}/members/{member}
//	PUT    /groups/{group}/key               {"key_version": n, "key_link": hex}
//	POST   /groups/{group}/packages          [WireKeyPackage]
//	GET    /groups/{group}/packages/{member}
//	DELETE /groups/{group}/packages/{member}
//	POST   /groups/{group}/messages          WireEnvelope
//	GET    /groups/{group}/messages?since=ms
//	POST   /msg/{user}                       WireEnvelope
//	GET    /msg/{user}?limit=N
//	POST   /msg/{user}/ack                   {"count": N}
//	GET    /ws/{user}                        websocket push
//
// Behaviour
//
//   - Envelopes with a zero timestamp get the current Unix time in
//     milliseconds; envelopes without an id get a UUID.
//   - Direct envelopes stay queued until acknowledged. GET returns them in
//     arrival order; ack drops the first N.
//   - Public keys must be 64 lowercase hex characters.
//   - Key versions only move forward.
//   - Every new envelope is pushed to connected websocket subscribers: the
//     recipient for direct messages, every other member for group messages.
//   - Responses are JSON. Non-2xx statuses carry {"error": "..."}.
//   - An access log records method, path, remote, status, bytes and duration.
//
// The relay never sees plaintext or private keys.
package server
