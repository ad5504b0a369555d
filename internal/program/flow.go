package program

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// FlowTokenGenerator generates flow tokens for external dispatches.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type FlowTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 flow tokens.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if the system random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined flow tokens, then falls back to
// numbered tokens "<prefix>-N" once they run out.
//
// Safe for concurrent use.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	prefix string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
//
//	gen := NewFixedGenerator("flow-a", "flow-b")
//	gen.Generate() // "flow-a"
//	gen.Generate() // "flow-b"
//	gen.Generate() // "flow-3"
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens, prefix: "flow"}
}

// NewSequentialGenerator returns "<prefix>-1", "<prefix>-2", ...
func NewSequentialGenerator(prefix string) *FixedGenerator {
	return &FixedGenerator{prefix: prefix}
}

// Generate returns the next token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.idx++
	if g.idx <= len(g.tokens) {
		return g.tokens[g.idx-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.idx)
}

// newProgramID returns a UUIDv7 identifying one mounted program.
func newProgramID() string {
	return uuid.Must(uuid.NewV7()).String()
}
