// Package cmd implements the hitsession CLI commands using Cobra.
//
// Available commands:
//   - get, post: send a request through a session and print the response
//   - gunzip: download a gzip payload and print it decoded
//   - session: list, show or clear named sessions kept in the session store
//   - init: write a default configuration file
//   - version: show hitsession version information
//
// Named sessions (--session) persist the cookie and default encoding in a
// SQLite file so consecutive invocations behave like one session.
package cmd
