// Package whisperx wraps the WhisperX command line tool.
//
// This package handles:
//   - WhisperX invocation through uvx (CPU or CUDA, optional diarization)
//   - Parsing the JSON output into utterance segments and per-word records
//
// WhisperX also writes an SRT file next to the JSON output; its timestamps
// keep millisecond precision and the path is reported back to callers.
package whisperx
