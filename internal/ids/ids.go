// Package ids provides the id generators used by every store.
package ids

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

type Generator interface {
	NewID() string
}

// UUID issues random v4 ids.
type UUID struct{}

func (UUID) NewID() string { return uuid.NewString() }

// Sequence issues "<prefix>-1", "<prefix>-2", ... and is safe for concurrent use.
type Sequence struct {
	prefix string
	n      atomic.Int64
}

func NewSequence(prefix string) *Sequence { return &Sequence{prefix: prefix} }

func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.n.Add(1))
}
