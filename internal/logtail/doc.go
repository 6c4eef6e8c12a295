// Package logtail reads the newest entries of a large, append-only access log.
//
// # Overview
//
// Proxy logs grow for weeks between rotations, and most callers only need the
// last few thousand requests. Reading the whole file on every query would make
// response time proportional to the file's age. This package instead seeks to
// the end of the file and walks backward in fixed-size blocks, stopping as soon
// as enough lines have been collected.
//
// # Core Functionality
//
//  1. ReadLines: return the last maxLines non-blank raw lines (or all of them)
//  2. Reader.Read: ReadLines plus parsing, skip counting and timestamp ordering
//
// # Backward Block Scan
//
// Blocks are read from the end toward the start. A block boundary usually
// splits a line, so the scanner is a small state machine:
//
//	pos     = file size (captured once at open)
//	pending = nil
//	loop while pos > 0 and fewer than maxLines collected:
//	   read block [pos-blockSize, pos)
//	   chunk = block + pending
//	   split chunk on '\n'
//	   if pos > 0 and byte[pos-1] != '\n':
//	       pending = first piece   (its start is not confirmed yet)
//	   else:
//	       pending = nil           (first piece starts a line)
//	   emit remaining pieces newest first
//
// The one-byte lookback at pos-1 decides whether the first piece of a block is
// a whole line. A fragment is only emitted once the block before it confirms
// where the line starts, so no line is split or emitted twice.
//
// # Growth and Bounds
//
// The file size is captured when the file is opened; bytes appended while a
// read is running are left for the next read. The number of block reads is
// therefore bounded by size/blockSize and the scanner never waits for growth.
//
// # Error Handling
//
// A missing file returns ErrFileNotFound and an unreadable one ErrAccessDenied.
// Lines the parser rejects are counted in Result and skipped; they never fail
// a read.
//
// # Ordering
//
// Within one read, lines come back in file order. Reader.Read additionally
// sorts entries by timestamp (stable, so equal timestamps keep file order)
// because squid writes a line when a request completes, not when it starts.
package logtail
