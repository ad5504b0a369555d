// Package journal records mounted programs and their completed cycles in
// SQLite, and replays a recorded program to check that it reproduces the
// same views.
//
// Messages are stored as canonical JSON produced by a Codec, with their
// content hash next to them. Views are stored by hash only.
//
// # Ordering
//
//   - cycles are read ORDER BY seq (the program's logical clock)
//   - mounts are read ORDER BY id (write order)
//
// # Database Configuration
//
//   - WAL mode, synchronous=NORMAL, 5 second busy timeout, foreign keys on
//   - a single connection; SQLite has one writer
package journal
