// Package main runs the cipherchat relay.
//
// Usage
//
//	relay [--config relay.yaml] [--listen :8080] [--data-dir DIR] [--log-level info]
//
// The config file is YAML with the keys listen, data_dir, log_level and
// max_body_bytes; flags override it. Without data_dir all state is held in
// memory and lost on exit, which suits local development and tests. With
// it, public keys, groups, key packages and queued envelopes live in a
// badger database under that directory.
//
// The process serves until SIGINT or SIGTERM, then closes websocket
// subscribers, drains in-flight requests for up to ten seconds and closes
// the store.
//
// See package internal/relay/server for the HTTP API. The relay never sees
// plaintext or private keys; it only stores ciphertext, public keys and
// wrapped group keys.
package main
