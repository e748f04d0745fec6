package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS returns a middleware that sets CORS headers for cross-origin requests.
// allowedOrigins is "*" or a comma-separated list; an entry like "https://*.cinestream.tv"
// matches any subdomain.
func CORS(allowedOrigins string) gin.HandlerFunc {
	policy := parseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allow := policy.allow(origin); allow != "" {
			c.Header("Access-Control-Allow-Origin", allow)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
			if allow != "*" {
				c.Header("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type originPolicy struct {
	any      bool
	exact    map[string]bool
	suffixes []string // "scheme|.suffix", e.g. "https|.cinestream.tv"
}

func parseOrigins(s string) originPolicy {
	p := originPolicy{exact: make(map[string]bool)}
	for _, o := range strings.Split(strings.TrimSpace(s), ",") {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			p.any = true
		case strings.Contains(o, "://*."):
			scheme, rest, _ := strings.Cut(o, "://*")
			p.suffixes = append(p.suffixes, scheme+"|"+rest)
		default:
			p.exact[o] = true
		}
	}
	if len(p.exact) == 0 && len(p.suffixes) == 0 {
		p.any = true
	}
	return p
}

// allow returns the Access-Control-Allow-Origin value for origin, or "" to send none.
func (p originPolicy) allow(origin string) string {
	if p.any {
		return "*"
	}
	if origin == "" {
		return ""
	}
	if p.exact[origin] {
		return origin
	}
	for _, s := range p.suffixes {
		scheme, suffix, _ := strings.Cut(s, "|")
		if strings.HasPrefix(origin, scheme+"://") && strings.HasSuffix(origin, suffix) {
			return origin
		}
	}
	return ""
}
