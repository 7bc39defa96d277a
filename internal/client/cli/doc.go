// Package cli provides the interactive birdwatch command-line client.
//
// It wires configuration, the local store, the remote API client, the live
// chat channel and the connectivity monitor, then runs a REPL. Every command
// works offline: sightings and chat lines are queued locally and replayed by
// the sync run on the next online edge.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See NewApp, App.Run and runREPL for details.
package cli
