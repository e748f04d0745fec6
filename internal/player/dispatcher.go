// Package player classifies content URLs into the strategy used to render them.
package player

import (
	"net/url"
	"strings"
)

// Kind is the rendering strategy for a video source.
type Kind string

const (
	KindDirect         Kind = "direct"
	KindYouTube        Kind = "youtube"
	KindEmbeddedPlayer Kind = "embedded_player"
	KindUnknown        Kind = "unknown"
)

// DefaultEmbedMarkers are host substrings of the third-party embedded players the catalog links to.
var DefaultEmbedMarkers = []string{
	"vidsrc",
	"2embed",
	"embed.su",
	"multiembed",
	"player.vimeo.com",
	"dailymotion.com/embed",
}

// Descriptor is the classification of one raw URL. PlayableURL is nil when IsValid is false.
type Descriptor struct {
	RawURL      string  `json:"raw_url"`
	Kind        Kind    `json:"kind"`
	PlayableURL *string `json:"playable_url"`
	IsValid     bool    `json:"is_valid"`
}

// Playable returns the playable URL or "".
func (d Descriptor) Playable() string {
	if d.PlayableURL == nil {
		return ""
	}
	return *d.PlayableURL
}

// Invalid-input messages passed to video error handlers.
const (
	MsgEmptyURL     = "video url is empty"
	MsgMalformedURL = "video url is malformed"
)

// Dispatcher classifies URLs. The zero value uses no embed markers and no direct hosts;
// use NewDispatcher or Classify for the defaults.
type Dispatcher struct {
	markers     []string
	directHosts []string
}

// NewDispatcher creates a dispatcher. A nil markers slice selects DefaultEmbedMarkers.
func NewDispatcher(markers, directHosts []string) *Dispatcher {
	if markers == nil {
		markers = DefaultEmbedMarkers
	}
	return &Dispatcher{
		markers:     normalize(markers),
		directHosts: normalize(directHosts),
	}
}

var defaultDispatcher = NewDispatcher(nil, nil)

// Classify classifies raw with the default embed markers and no direct hosts.
func Classify(raw string) Descriptor {
	return defaultDispatcher.Classify(raw)
}

// Classify returns the descriptor for raw. It has no side effects.
func (d *Dispatcher) Classify(raw string) Descriptor {
	desc, _ := d.classify(raw)
	return desc
}

// Resolve classifies raw and calls onVideoError synchronously when it is invalid.
func (d *Dispatcher) Resolve(raw string, onVideoError func(message string)) Descriptor {
	desc, msg := d.classify(raw)
	if !desc.IsValid && onVideoError != nil {
		onVideoError(msg)
	}
	return desc
}

func (d *Dispatcher) classify(raw string) (Descriptor, string) {
	desc := Descriptor{RawURL: raw, Kind: KindUnknown}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return desc, MsgEmptyURL
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Opaque != "" {
		return desc, MsgMalformedURL
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || strings.Contains(host, "&") {
		return desc, MsgMalformedURL
	}
	desc.IsValid = true

	playable := trimmed
	switch {
	case isYouTube(u):
		desc.Kind = KindYouTube
		if p, ok := youtubePlayable(u, trimmed); ok {
			playable = p
		}
	case d.isEmbedded(host, u):
		desc.Kind = KindEmbeddedPlayer
	case d.isDirect(host):
		desc.Kind = KindDirect
	}
	desc.PlayableURL = &playable
	return desc, ""
}

// isEmbedded matches markers against the host, or host+path for markers carrying a path.
func (d *Dispatcher) isEmbedded(host string, u *url.URL) bool {
	hostPath := host + strings.ToLower(u.EscapedPath())
	for _, m := range d.markers {
		if strings.Contains(m, "/") {
			if strings.Contains(hostPath, m) {
				return true
			}
			continue
		}
		if strings.Contains(host, m) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) isDirect(host string) bool {
	for _, h := range d.directHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
