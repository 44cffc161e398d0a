// Package api defines wire-format types and converters for the HTTP API and
// the CLI. It translates internal queue and workflow models into
// transport-friendly DTOs so callers never couple to storage types.
//
// # Key Types
//
// QueueItem: a transcription job with progress, outputs and the classified
// source as raw JSON.
//
// WorkflowStatus: pipeline state, queue stats, stage health and last job.
//
// DaemonStatus: workflow status plus lock, queue database and dependency
// availability.
//
// SubmitRequest/SubmitResponse: the body and reply of submit and preprocess
// calls. SubmitRequest.Options is shared with the CLI so both surfaces parse
// hints the same way.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Per-item retry and remove report an outcome for every requested id instead
// of failing the whole batch.
package api
