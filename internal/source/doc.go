// Package source classifies raw locators into transcribable sources.
//
// A Source is a tagged union over four kinds: audio, video, playlist and rss.
// Every kind shares the Record fields (locator, collection path, title, tags
// and so on); playlists carry child videos in Items and feeds carry child
// audio entries in Entries. Candidates flattens any source to the concrete
// audio/video units that become queue jobs, and Media returns the identity
// used for deduplication.
//
// Classifier.Classify applies a fixed decision order: audio extension, feed
// extension, caller-supplied platform metadata, video container extension,
// and finally the Resolver. Per-child problems while expanding a playlist or
// feed are recorded as services.Outcome skips on the parent and never abort
// siblings.
package source
