package middleware

import (
	"net/http"
	"strings"
)

// CheckOrigin builds the upgrade-time origin check for the websocket
// endpoint. An empty allow list accepts every origin (dev mode); otherwise
// the Origin header must match one entry exactly. Requests without an
// Origin header (non-browser clients) are always accepted.
func CheckOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}
