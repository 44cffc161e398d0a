// Package main hosts the bobbin CLI.
//
// The Cobra command tree submits sources, drains the queue in the foreground
// under the run lock, hosts the HTTP API (serve) and exposes queue
// maintenance and configuration utilities. Configuration and logger setup
// happen once per invocation in commandContext; the commands themselves only
// translate flags into calls on the internal packages.
package main
