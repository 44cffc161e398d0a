// Package textutil provides text helpers for naming output files.
//
// The primary use cases are:
//   - Slugs for metadata and transcript file names
//   - Sanitizing filenames and path segments for safe filesystem use
//   - Deriving a readable title from a file path when none was supplied
package textutil
