package testutil

import (
	"fmt"
	"sync"
)

// FixedFlowGenerator returns the same flow token on every call, so every
// dispatch joins one flow and shares one step quota.
//
// Safe for concurrent use.
type FixedFlowGenerator struct {
	token string
}

// NewFixedFlowGenerator returns a generator for token, or for
// "test-flow-default" when token is empty.
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = "test-flow-default"
	}
	return &FixedFlowGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}

// CountingFlowGenerator returns "<prefix>-1", "<prefix>-2", ... and
// remembers how many tokens it issued.
type CountingFlowGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCountingFlowGenerator returns a generator for prefix, or for "flow"
// when prefix is empty.
func NewCountingFlowGenerator(prefix string) *CountingFlowGenerator {
	if prefix == "" {
		prefix = "flow"
	}
	return &CountingFlowGenerator{prefix: prefix}
}

// Generate returns the next numbered token.
func (g *CountingFlowGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Issued returns the number of tokens generated so far.
func (g *CountingFlowGenerator) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}
