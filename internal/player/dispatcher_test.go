package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyInvalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-url", "https://&/", "https://a&b.com/x", "https:///path-only", "mailto:someone@example.com", "://missing-scheme"} {
		d := Classify(raw)
		assert.False(t, d.IsValid, "%q", raw)
		assert.Equal(t, KindUnknown, d.Kind, "%q", raw)
		assert.Nil(t, d.PlayableURL, "%q", raw)
		assert.Equal(t, raw, d.RawURL)
	}
}

func TestClassifyYouTube(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"short link", "https://youtu.be/abc123", "https://www.youtube.com/embed/abc123"},
		{"watch", "https://www.youtube.com/watch?v=abc123", "https://www.youtube.com/embed/abc123"},
		{"watch with extra params", "https://youtube.com/watch?list=PL1&v=abc123&ab_channel=x", "https://www.youtube.com/embed/abc123"},
		{"mobile host", "https://m.youtube.com/watch?v=abc123", "https://www.youtube.com/embed/abc123"},
		{"already embed", "https://www.youtube.com/embed/abc123?autoplay=1", "https://www.youtube.com/embed/abc123?autoplay=1"},
		{"shorts", "https://www.youtube.com/shorts/Zx_9-y", "https://www.youtube.com/embed/Zx_9-y"},
		{"live", "https://www.youtube.com/live/abc123?feature=share", "https://www.youtube.com/embed/abc123"},
		{"legacy v path", "https://www.youtube.com/v/abc123", "https://www.youtube.com/embed/abc123"},
		{"start seconds", "https://youtu.be/abc123?t=90", "https://www.youtube.com/embed/abc123?start=90"},
		{"start duration", "https://www.youtube.com/watch?v=abc123&t=1m30s", "https://www.youtube.com/embed/abc123?start=90"},
		{"start param", "https://www.youtube.com/watch?v=abc123&start=1h2m3s", "https://www.youtube.com/embed/abc123?start=3723"},
		{"bad start ignored", "https://youtu.be/abc123?t=soon", "https://www.youtube.com/embed/abc123"},
		{"missing v falls back", "https://www.youtube.com/watch?x=1", "https://www.youtube.com/watch?x=1"},
		{"channel page falls back", "https://www.youtube.com/@cinestream", "https://www.youtube.com/@cinestream"},
		{"bare short host falls back", "https://youtu.be/", "https://youtu.be/"},
		{"invalid id falls back", "https://youtu.be/abc%20123", "https://youtu.be/abc%20123"},
		{"youtube in path", "https://redirect.example.com/to/youtube.com/watch", "https://redirect.example.com/to/youtube.com/watch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.raw)
			require.True(t, d.IsValid)
			assert.Equal(t, KindYouTube, d.Kind)
			require.NotNil(t, d.PlayableURL)
			assert.Equal(t, tt.want, *d.PlayableURL)
		})
	}
}

func TestClassifyEmbeddedPlayer(t *testing.T) {
	for _, raw := range []string{
		"https://vidsrc.to/embed/movie/tt0111161",
		"https://www.2embed.cc/embed/123",
		"https://player.vimeo.com/video/76979871",
		"https://www.dailymotion.com/embed/video/x7tgad0",
	} {
		d := Classify(raw)
		assert.True(t, d.IsValid, raw)
		assert.Equal(t, KindEmbeddedPlayer, d.Kind, raw)
		assert.Equal(t, raw, d.Playable(), raw)
	}

	// A dailymotion watch page is not the embed form.
	assert.Equal(t, KindUnknown, Classify("https://www.dailymotion.com/video/x7tgad0").Kind)
}

func TestClassifyUnknownKeepsRawURL(t *testing.T) {
	d := Classify("https://example.com/video.mp4")
	assert.True(t, d.IsValid)
	assert.Equal(t, KindUnknown, d.Kind)
	assert.Equal(t, "https://example.com/video.mp4", d.Playable())
}

func TestClassifyTrimsWhitespace(t *testing.T) {
	d := Classify("  https://youtu.be/abc123 \n")
	assert.True(t, d.IsValid)
	assert.Equal(t, "https://www.youtube.com/embed/abc123", d.Playable())
}

func TestDispatcherDirectHosts(t *testing.T) {
	d := NewDispatcher(nil, []string{"CDN.cinestream.tv", "ads.s3.eu-west-1.amazonaws.com", " "})

	got := d.Classify("https://cdn.cinestream.tv/ads/promo/spot.mp4")
	assert.Equal(t, KindDirect, got.Kind)
	assert.Equal(t, "https://cdn.cinestream.tv/ads/promo/spot.mp4", got.Playable())

	assert.Equal(t, KindDirect, d.Classify("https://edge.cdn.cinestream.tv/a.mp4").Kind)
	assert.Equal(t, KindUnknown, d.Classify("https://notcdn.cinestream.tv.evil.com/a.mp4").Kind)
	assert.Equal(t, KindUnknown, d.Classify("https://example.com/video.mp4").Kind)

	// YouTube wins over every later rule.
	assert.Equal(t, KindYouTube, NewDispatcher(nil, []string{"youtu.be"}).Classify("https://youtu.be/abc").Kind)
}

func TestDispatcherCustomMarkers(t *testing.T) {
	d := NewDispatcher([]string{"Streamtape"}, nil)
	assert.Equal(t, KindEmbeddedPlayer, d.Classify("https://streamtape.com/e/xyz").Kind)
	assert.Equal(t, KindUnknown, d.Classify("https://vidsrc.to/embed/movie/1").Kind)

	var zero Dispatcher
	assert.Equal(t, KindUnknown, zero.Classify("https://vidsrc.to/embed/movie/1").Kind)
}

func TestResolveReportsVideoErrors(t *testing.T) {
	d := NewDispatcher(nil, nil)
	var messages []string
	onErr := func(msg string) { messages = append(messages, msg) }

	d.Resolve("", onErr)
	d.Resolve("https://&/", onErr)
	d.Resolve("https://youtu.be/abc123", onErr)
	d.Resolve("nope", nil)

	assert.Equal(t, []string{MsgEmptyURL, MsgMalformedURL}, messages)
}

func TestStartOffset(t *testing.T) {
	tests := map[string]int{
		"":      0,
		"45":    45,
		"-5":    0,
		"2m":    120,
		"1h":    3600,
		"1.5s":  1,
		"later": 0,
	}
	for in, want := range tests {
		assert.Equal(t, want, startOffset(map[string][]string{"t": {in}}), in)
	}
}

func TestClassifyTrimsSurroundingWhitespace(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		kind     Kind
		playable string
	}{
		{"embedded", "  https://vidsrc.to/embed/movie/tt0111161\n", KindEmbeddedPlayer, "https://vidsrc.to/embed/movie/tt0111161"},
		{"unknown", "\thttps://example.com/video.mp4 ", KindUnknown, "https://example.com/video.mp4"},
		{"youtube", " https://youtu.be/abc123 ", KindYouTube, "https://www.youtube.com/embed/abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.raw)
			require.True(t, d.IsValid)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.raw, d.RawURL, "raw input is kept as given")
			require.NotNil(t, d.PlayableURL)
			assert.Equal(t, tt.playable, *d.PlayableURL)
		})
	}
}
