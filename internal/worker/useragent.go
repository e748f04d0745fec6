package worker

import (
	"strings"

	"github.com/mssola/useragent"
)

// parseBrowser returns the browser family of ua, or "Other".
func parseBrowser(ua string) string {
	if ua == "" {
		return "Other"
	}
	name, _ := useragent.New(ua).Browser()
	switch {
	case strings.Contains(name, "Edge"):
		return "Edge"
	case name == "Chrome", name == "Chromium":
		return "Chrome"
	case name == "Firefox", name == "Safari", name == "Opera":
		return name
	}
	return "Other"
}

// parseDevice classifies ua as Desktop, Mobile, Tablet or Bot.
func parseDevice(ua string) string {
	if ua == "" {
		return "Desktop"
	}
	if strings.Contains(ua, "iPad") || (strings.Contains(ua, "Android") && !strings.Contains(ua, "Mobile")) {
		return "Tablet"
	}
	parsed := useragent.New(ua)
	switch {
	case parsed.Bot():
		return "Bot"
	case parsed.Mobile():
		return "Mobile"
	}
	return "Desktop"
}
