package model

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers for citations and reports
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random UUIDv4 identifiers
type UUIDGenerator struct{}

// NewID returns a fresh UUID string
func (UUIDGenerator) NewID() string {
	return uuid.New().String()
}

// SequenceGenerator issues prefix-1, prefix-2, ... and is safe for concurrent use.
// Useful wherever identifiers must be reproducible.
type SequenceGenerator struct {
	Prefix string
	n      atomic.Uint64
}

// NewID returns the next identifier in the sequence
func (g *SequenceGenerator) NewID() string {
	return fmt.Sprintf("%s-%d", g.Prefix, g.n.Add(1))
}
