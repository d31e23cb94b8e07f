// Package extraction turns uploaded file bytes into plain text.
//
// PDF files (detected by a ".pdf" filename suffix, any case) are read page by
// page with github.com/ledongthuc/pdf; pages yielding no text are skipped and
// the rest are joined with a blank line. Everything else is decoded as UTF-8
// (or UTF-16 when a byte order mark says so) with invalid sequences replaced
// by U+FFFD, so non-PDF extraction never fails.
package extraction
