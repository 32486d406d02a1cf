// Command relay runs the in-memory HTTP relay used by silent during
// development and tests. It stores published pre-key bundles and queues
// encrypted envelopes for recipients until they fetch and ack them.
//
// The HTTP API is documented in package internal/relay.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Each request is logged at debug level (RLAY=debug) with method, path,
//     remote, status, bytes and duration.
//   - Counters are exported on /metrics for Prometheus.
//   - SIGINT or SIGTERM shuts the server down gracefully.
//
// The relay is an untrusted middleman. It never sees plaintext or private
// keys; it only stores ciphertext and public bundles.
package main
