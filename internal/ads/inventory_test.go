package ads

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinestream/backend/internal/models"
)

type stubLister struct {
	ads []models.Advertisement
	err error
}

func (s *stubLister) ListActive(context.Context) ([]models.Advertisement, error) {
	return s.ads, s.err
}

func TestInventoryReloadFromRepository(t *testing.T) {
	repo := &stubLister{ads: []models.Advertisement{
		{Ref: "a", SourceURL: "https://youtu.be/a"},
		{Ref: "b", SourceURL: "https://cdn.cinestream.tv/ads/b.mp4"},
	}}
	inv := NewInventory(repo, []string{"fallback"}, nil)
	shared := inv.Playlist()
	assert.Equal(t, []string{"fallback"}, shared.IDs())

	require.NoError(t, inv.Reload(context.Background()))
	assert.Same(t, shared, inv.Playlist())
	assert.Equal(t, []string{"a", "b"}, shared.IDs())
	assert.Equal(t, "https://cdn.cinestream.tv/ads/b.mp4", inv.Lookup("b").SourceURL)
}

func TestInventoryFallsBackWhenNoActiveAds(t *testing.T) {
	repo := &stubLister{ads: []models.Advertisement{{Ref: "a"}}}
	inv := NewInventory(repo, []string{"x", "y"}, nil)
	require.NoError(t, inv.Reload(context.Background()))
	assert.Equal(t, []string{"a"}, inv.Playlist().IDs())

	repo.ads = nil
	require.NoError(t, inv.Reload(context.Background()))
	assert.Equal(t, []string{"x", "y"}, inv.Playlist().IDs())
}

func TestInventoryReloadErrorKeepsPlaylist(t *testing.T) {
	repo := &stubLister{ads: []models.Advertisement{{Ref: "a"}}}
	inv := NewInventory(repo, nil, nil)
	require.NoError(t, inv.Reload(context.Background()))

	repo.err = errors.New("db down")
	err := inv.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, inv.Playlist().IDs())
}

func TestInventoryWithoutRepository(t *testing.T) {
	inv := NewInventory(nil, []string{"dQw4w9WgXcQ", " "}, nil)
	require.NoError(t, inv.Reload(context.Background()))
	assert.Equal(t, []string{"dQw4w9WgXcQ"}, inv.Playlist().IDs())
}

func TestInventoryLookupSynthesizesFallbackCreatives(t *testing.T) {
	inv := NewInventory(nil, nil, nil)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", inv.Lookup("dQw4w9WgXcQ").SourceURL)
	assert.Equal(t, "https://cdn.example.com/a.mp4", inv.Lookup("https://cdn.example.com/a.mp4").SourceURL)
}

func TestInventoryEmptyDisablesControllers(t *testing.T) {
	inv := NewInventory(nil, nil, nil)
	c := NewController(inv.Playlist())
	c.Initialize(Params{Interval: 1, Duration: 1})
	assert.Equal(t, StateDisabled, c.State())
}
