// Package cli provides the interactive chunkmail compose client.
//
// It wires configuration, the local sent-mail cache, the HTTP transport and
// a compose session behind a small REPL. Typical flow: set recipients,
// subject and body, attach files, send, then browse the sent list.
//
// Uploads run inside the send command; per-file progress is drawn as it
// happens (a live bar on a terminal, one line per status change otherwise).
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
