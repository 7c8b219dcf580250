package ws

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// NewOriginChecker allows requests without an Origin header (non-browser
// clients) and browser requests whose Origin is in allowed. A "*" entry
// allows everything.
func NewOriginChecker(allowed []string) func(r *http.Request) bool {
	norm := lo.FilterMap(allowed, func(o string, _ int) (string, bool) {
		o = normalizeOrigin(o)
		return o, o != ""
	})
	if lo.Contains(norm, "*") {
		return func(*http.Request) bool { return true }
	}
	set := lo.SliceToMap(norm, func(o string) (string, struct{}) { return o, struct{}{} })

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[normalizeOrigin(origin)]
		return ok
	}
}

func normalizeOrigin(o string) string {
	o = strings.TrimSpace(o)
	if o == "*" || o == "" {
		return o
	}
	u, err := url.Parse(o)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(strings.TrimRight(o, "/"))
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
