package player

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const youtubeEmbedBase = "https://www.youtube.com/embed/"

var youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func isYouTube(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)
	for _, marker := range []string{"youtube.com", "youtu.be"} {
		if strings.Contains(host, marker) || strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

// youtubePlayable returns the embeddable form of a YouTube URL. ok is false when no
// video ID can be found, in which case the caller keeps the raw URL.
func youtubePlayable(u *url.URL, raw string) (string, bool) {
	host := strings.ToLower(u.Hostname())
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch {
	case strings.Contains(host, "youtu.be"):
		id = parts[0]
	case strings.Contains(host, "youtube.com"):
		if len(parts) >= 2 && strings.EqualFold(parts[0], "embed") {
			return raw, true
		}
		switch {
		case strings.EqualFold(parts[0], "watch"):
			id = strings.TrimSpace(u.Query().Get("v"))
		case len(parts) >= 2 && (strings.EqualFold(parts[0], "shorts") || strings.EqualFold(parts[0], "live") || strings.EqualFold(parts[0], "v")):
			id = parts[1]
		}
	}
	if id == "" || !youtubeIDPattern.MatchString(id) {
		return "", false
	}

	playable := youtubeEmbedBase + id
	if start := startOffset(u.Query()); start > 0 {
		playable += "?start=" + strconv.Itoa(start)
	}
	return playable, true
}

// startOffset reads t or start ("90", "90s", "1m30s", "1h2m3s") as whole seconds.
func startOffset(q url.Values) int {
	v := q.Get("t")
	if v == "" {
		v = q.Get("start")
	}
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0
	}
	return int(d / time.Second)
}
