// Package preflight provides readiness checks for the filesystem paths and
// external services a bobbin run depends on.
//
// These checks run in two contexts:
//   - A foreground run and the daemon call RunAll before draining the queue.
//     If any check fails the run does not start, so a missing output
//     directory or a revoked API key is reported before hours of downloads.
//   - The CLI "bobbin status" command prints every result.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
