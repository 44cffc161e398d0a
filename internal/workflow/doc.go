// Package workflow drives submitted sources through the transcription
// pipeline.
//
// The Manager classifies raw locators, prunes candidates against the
// existing media registry and enqueues the survivors. Run then takes queued
// jobs one at a time through the configured stage handlers (acquisition,
// transcription, post-processing, export), persisting progress after every
// stage. The first failed job stops the run; jobs behind it stay queued.
//
// Each run owns a scratch tree with one directory per job and, when a log
// directory is configured, every job writes a dedicated log file next to the
// main bobbin.log.
package workflow
