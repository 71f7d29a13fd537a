package testutil

import (
	"sync"

	"github.com/roach88/quarry/internal/enumerable"
)

// FixedIDGenerator returns the same preparation id every time, so log
// output and golden files do not depend on the clock.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator for id.
// If id is empty, Generate() returns "test-prepare-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-prepare-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// CountingCompiler wraps a compiler and counts Compile calls.
// A nil Inner compiles with enumerable.ClosureCompiler.
//
// Thread-safety: all methods are safe for concurrent use.
type CountingCompiler struct {
	Inner enumerable.Compiler

	mu    sync.Mutex
	calls int
}

// Compile implements enumerable.Compiler.
func (c *CountingCompiler) Compile(p *enumerable.Procedure) (enumerable.Executable, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.Inner == nil {
		return enumerable.ClosureCompiler{}.Compile(p)
	}
	return c.Inner.Compile(p)
}

// Calls returns how many times Compile ran.
func (c *CountingCompiler) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
