package ads

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cinestream/backend/internal/models"
)

// ActiveLister loads the ads that make up the default rotation.
type ActiveLister interface {
	ListActive(ctx context.Context) ([]models.Advertisement, error)
}

// Inventory owns the process-wide default playlist and the creative behind each ref.
// Controllers created without their own ad IDs share Inventory.Playlist().
type Inventory struct {
	repo     ActiveLister
	fallback []string
	playlist *Playlist
	logger   *zap.Logger

	mu    sync.RWMutex
	byRef map[string]models.Advertisement
}

// NewInventory creates an inventory seeded with the configured fallback refs. repo may be nil.
func NewInventory(repo ActiveLister, fallback []string, logger *zap.Logger) *Inventory {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback = clean(fallback)
	return &Inventory{
		repo:     repo,
		fallback: fallback,
		playlist: NewPlaylist(fallback),
		logger:   logger,
		byRef:    make(map[string]models.Advertisement),
	}
}

// Playlist returns the shared default playlist. The pointer never changes; Reload replaces its contents.
func (inv *Inventory) Playlist() *Playlist {
	return inv.playlist
}

// Reload refreshes the default playlist from active advertisements, falling back to the
// configured refs when none are active. On error the current playlist is kept.
func (inv *Inventory) Reload(ctx context.Context) error {
	if inv.repo == nil {
		inv.playlist.Replace(inv.fallback)
		return nil
	}
	list, err := inv.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("reload ad inventory: %w", err)
	}

	byRef := make(map[string]models.Advertisement, len(list))
	refs := make([]string, 0, len(list))
	for _, a := range list {
		byRef[a.Ref] = a
		refs = append(refs, a.Ref)
	}
	if len(refs) == 0 {
		refs = inv.fallback
	}

	inv.mu.Lock()
	inv.byRef = byRef
	inv.mu.Unlock()
	inv.playlist.Replace(refs)

	inv.logger.Info("ad inventory reloaded", zap.Int("active", len(list)), zap.Int("playlist_len", inv.playlist.Len()))
	return nil
}

// Lookup returns the creative for ref. Refs without a row (configured fallbacks) are treated
// as a media URL when they parse as one, otherwise as a YouTube video ID.
func (inv *Inventory) Lookup(ref string) models.Advertisement {
	inv.mu.RLock()
	a, ok := inv.byRef[ref]
	inv.mu.RUnlock()
	if ok {
		return a
	}
	a = models.Advertisement{Ref: ref, Title: ref, IsActive: true}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
		a.SourceURL = ref
	} else {
		a.SourceURL = "https://www.youtube.com/watch?v=" + url.QueryEscape(strings.TrimSpace(ref))
	}
	return a
}
