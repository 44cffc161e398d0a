// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe (through an injectable Runner) and returns a Result.
// IsStandardWAV tells acquisition whether a file already matches the 16 kHz
// mono PCM input the transcription backend expects.
package ffprobe
