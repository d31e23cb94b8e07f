// Package chunking splits extracted document text into overlapping windows
// suitable for embedding.
//
// Windows are measured in runes, trimmed of surrounding whitespace, and
// emitted in reading order. Whitespace-only windows are dropped without
// disturbing the slide, so the ordinal assigned by the caller is the position
// in the returned slice, not the window index.
package chunking
