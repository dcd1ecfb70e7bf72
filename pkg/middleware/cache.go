package middleware

import (
	"net/http"
	"strconv"
)

// CacheControl marks successful GET and HEAD responses as publicly cacheable
// for maxAge seconds. Asset names are unique per upload, so served images
// never change under the same URL.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(maxAge) + ", immutable"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
