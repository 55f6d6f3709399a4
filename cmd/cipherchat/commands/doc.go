// Package commands defines the cipherchat CLI and wires dependencies for subcommands.
//
// Commands
//
//   - fingerprint    Print the identity fingerprint and public key
//   - register       Publish your public key to a relay
//   - send           Encrypt and send a direct message
//   - send-file      Encrypt and send a file
//   - recv           Fetch, decrypt and acknowledge queued direct messages
//   - listen         Print messages as the relay pushes them
//   - group create   Create a group and distribute its key
//   - group add      Add a member and hand them the current key
//   - group remove   Remove a member (rotates the key unless --no-rotate)
//   - group rotate   Replace the group key
//   - group send     Encrypt and send a group message
//   - group recv     Fetch and decrypt group messages
//   - group info     Show a group's members and key version
//
// # Implementation
//
// The root command loads config.yaml from --home, applies flag overrides,
// builds the logger and the dependency graph before any subcommand runs.
// Identities are never stored: every command that needs keys derives them
// from --password and the username.
package commands
