// Package app wires application dependencies for the CLI.
//
// It loads the TOML configuration, sets up the subsystem loggers, and builds
// the concrete stores, relay client and services, exposing them via the Wire
// struct for commands to use.
package app
