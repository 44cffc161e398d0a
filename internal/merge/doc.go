// Package merge interleaves chapter headings with transcript text.
//
// Merge walks a time-ordered chapter list and a time-ordered element stream
// with two pointers. A chapter whose start is at or before the next
// element's start is emitted first as a "## name" heading; otherwise the
// element is consumed into the running paragraph. In diarized mode a change
// of speaker closes the paragraph and opens a "Speaker <id>: HH:MM:SS" turn.
// Leftover chapters are emitted as bare headings before leftover content.
//
// The package does no I/O and holds no state, so Merge is safe to fuzz.
package merge
