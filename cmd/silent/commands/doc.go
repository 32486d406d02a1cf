// Package commands defines the silent CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Create the local identity
//   - fingerprint    Print the identity fingerprint
//   - register       Generate pre-keys and publish your bundle to a relay
//   - start-session  Run X3DH against a peer's bundle
//   - close-session  Forget all session state for a peer
//   - sessions       List peers with an active session
//   - send           Encrypt and send a message
//   - recv           Fetch and decrypt queued messages, optionally following
//
// # Implementation
//
// The root command loads the configuration (defaults, then config.toml, then
// flags) and builds the dependency graph before any subcommand runs. The
// graph is closed again after the subcommand returns, releasing the session
// database.
package commands
