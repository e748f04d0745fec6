package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinestream/backend/internal/models"
)

type fakeStats struct {
	since time.Time
	err   error
}

func (f *fakeStats) StatsByRef(_ context.Context, since time.Time) ([]models.AdStats, error) {
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	return []models.AdStats{{Ref: "promo", Impressions: 2, Dismissed: 1, AvgWatchSecs: 9}}, nil
}

func (f *fakeStats) Devices(context.Context, time.Time) ([]DeviceCount, error) {
	return []DeviceCount{{Device: "Mobile", Impressions: 2}}, nil
}

func serveStats(t *testing.T, store StatsStore, query string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, nil)
	h.now = func() time.Time { return time.Date(2026, 5, 31, 12, 0, 0, 0, time.UTC) }
	r := gin.New()
	r.GET("/admin/ads/stats", h.Stats)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/ads/stats"+query, nil))
	return rec
}

func TestStatsDefaultWindow(t *testing.T) {
	store := &fakeStats{}
	rec := serveStats(t, store, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC), store.since)

	var body struct {
		Success bool          `json:"success"`
		Data    StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 30, body.Data.Days)
	require.Len(t, body.Data.Ads, 1)
	assert.Equal(t, int64(1), body.Data.Ads[0].Dismissed)
	assert.Equal(t, "Mobile", body.Data.Devices[0].Device)
}

func TestStatsCustomWindow(t *testing.T) {
	store := &fakeStats{}
	rec := serveStats(t, store, "?days=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 5, 24, 12, 0, 0, 0, time.UTC), store.since)
}

func TestStatsRejectsBadWindow(t *testing.T) {
	for _, q := range []string{"?days=0", "?days=366", "?days=week"} {
		rec := serveStats(t, &fakeStats{}, q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestStatsStoreError(t *testing.T) {
	rec := serveStats(t, &fakeStats{err: errors.New("db down")}, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
