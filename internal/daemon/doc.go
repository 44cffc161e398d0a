// Package daemon hosts the long-running bobbin process.
//
// It wires configuration, queue storage and the workflow manager into a
// single lifecycle guarded by a flock on <state_dir>/bobbin.lock, so a daemon
// and a foreground `bobbin start` never share a scratch tree. The daemon
// serves the fiber HTTP API used to submit sources, inspect and maintain the
// queue, and start runs. Runs happen in the background, one at a time.
//
// Keep orchestration logic here: individual workflow steps live in their own
// packages while the daemon focuses on startup, shutdown and the API surface.
package daemon
