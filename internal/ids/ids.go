// Package ids provides identifier generation for clips, files and jobs.
package ids

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces unique identifiers with a readable prefix.
type Generator interface {
	NewID(prefix string) string
}

// UUIDGenerator issues random UUID-based identifiers.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a UUIDGenerator.
func NewUUIDGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

// NewID returns prefix-<uuid>, or a bare uuid when prefix is empty.
func (UUIDGenerator) NewID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}

// Sequence issues prefix-1, prefix-2, ... and is meant for deterministic tests.
type Sequence struct {
	mu   sync.Mutex
	next int
}

// NewSequence creates a Sequence starting at 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewID returns the next identifier in the sequence.
func (s *Sequence) NewID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	if prefix == "" {
		return fmt.Sprintf("%d", s.next)
	}
	return fmt.Sprintf("%s-%d", prefix, s.next)
}
