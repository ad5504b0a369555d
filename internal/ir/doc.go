// Package ir provides the canonical value representation used by weft to
// give messages and views a stable identity.
//
// Messages are embedder-defined Go values. To journal and replay them, an
// application supplies a codec that maps each message to an Object. View
// trees are converted the same way by the vdom package. Both are hashed over
// RFC 8785 canonical JSON so that two runs producing the same message or the
// same view produce the same hash.
//
// Key constraints:
//   - NO float values anywhere; numbers are int64
//   - null is only accepted when decoding stored JSON, never when hashing
//   - Object keys are ordered by UTF-16 code units
//
// ir imports nothing internal; every other package may import it.
package ir
