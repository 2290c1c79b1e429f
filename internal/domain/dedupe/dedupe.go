// Package dedupe tracks candidate identities already accepted by a
// selection pass so the same clip or segment is never picked twice.
package dedupe

import (
	"context"
	"strings"
	"sync"
)

// Deduper records seen identities.
type Deduper interface {
	// SeenAndRecord reports whether id was already recorded and records it
	// if not. The check and the insert happen atomically.
	SeenAndRecord(ctx context.Context, id string) bool

	// Seen reports whether id is recorded without recording it.
	Seen(ctx context.Context, id string) bool
}

// inMemoryDeduper keeps identities in a map for the life of one pass.
type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryDeduper creates an empty in-memory deduper.
func NewInMemoryDeduper() Deduper {
	return &inMemoryDeduper{seen: make(map[string]struct{})}
}

func key(id string) string {
	return strings.TrimSpace(id)
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	k := key(id)
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[k]; ok {
		return true
	}
	d.seen[k] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Seen(_ context.Context, id string) bool {
	k := key(id)
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[k]
	return ok
}
