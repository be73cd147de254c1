// Package reload keeps the current knowledge base behind an atomic pointer
// and rebuilds it when the corpus changes on disk.
package reload

import (
	"sync/atomic"

	"github.com/kamusis/skillbase/internal/kb"
)

// Holder publishes the current *kb.Base. Readers never block; a reload
// replaces the pointer wholesale.
type Holder struct {
	p atomic.Pointer[kb.Base]
}

// NewHolder returns a Holder serving b.
func NewHolder(b *kb.Base) *Holder {
	h := &Holder{}
	h.p.Store(b)
	return h
}

// Current returns the base in use.
func (h *Holder) Current() *kb.Base {
	return h.p.Load()
}

// Swap installs b and returns the previous base. Readers that already hold
// the previous base keep using it, so it is not closed here.
func (h *Holder) Swap(b *kb.Base) *kb.Base {
	return h.p.Swap(b)
}
