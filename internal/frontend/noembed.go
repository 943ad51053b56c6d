//go:build !embed

package frontend

import "net/http"

// Handler returns nil when the static assets are not compiled in. The
// server falls back to serving from disk or API-only mode.
func Handler() http.Handler {
	return nil
}
