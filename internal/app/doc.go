// Package app wires application dependencies for the CLI and the relay.
//
// It loads YAML configuration, builds the logrus logger and constructs the
// crypto suite, relay client, services and session controller, exposing
// them via Wire. App adds the few flows that span several services, such
// as registering with a relay.
//
// Contents
//
//   - config.go        Client Config and LoadConfig
//   - relay_config.go  RelayConfig and LoadRelayConfig
//   - logger.go        NewLogger
//   - wire.go          Wire and NewWire
//   - app.go           App, Register and DeriveIdentity
package app
