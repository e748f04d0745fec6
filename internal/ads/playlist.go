package ads

import (
	"strings"
	"sync"
)

// Playlist is an ordered, concurrency-safe list of opaque ad identifiers.
// It carries no rotation state; each Controller keeps its own index.
// A nil *Playlist behaves as an empty one.
type Playlist struct {
	mu  sync.RWMutex
	ids []string
}

// NewPlaylist copies ids into a new playlist, dropping blank entries.
func NewPlaylist(ids []string) *Playlist {
	return &Playlist{ids: clean(ids)}
}

// Len returns the number of identifiers.
func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ids)
}

// IDs returns a copy of the identifiers in order.
func (p *Playlist) IDs() []string {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.ids))
	copy(out, p.ids)
	return out
}

// Add appends id. Blank ids are ignored.
func (p *Playlist) Add(id string) bool {
	id = strings.TrimSpace(id)
	if p == nil || id == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return true
}

// Remove deletes the first occurrence of id.
func (p *Playlist) Remove(id string) bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, v := range p.ids {
		if v == id {
			p.ids = append(p.ids[:i:i], p.ids[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the whole list.
func (p *Playlist) Replace(ids []string) {
	if p == nil {
		return
	}
	next := clean(ids)
	p.mu.Lock()
	p.ids = next
	p.mu.Unlock()
}

// pick returns the id at index, clamping an out-of-range index to 0.
func (p *Playlist) pick(index int) (id string, at int, ok bool) {
	if p == nil {
		return "", 0, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.ids) == 0 {
		return "", 0, false
	}
	if index < 0 || index >= len(p.ids) {
		index = 0
	}
	return p.ids[index], index, true
}

func clean(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if t := strings.TrimSpace(id); t != "" {
			out = append(out, t)
		}
	}
	return out
}
