package middleware

import "net/http"

// Vary declares the request headers that change dynamic responses: the language
// preference, the session cookie and whether htmx asked for a fragment.
func Vary(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// append to existing Vary if any
		w.Header().Add("Vary", "Accept-Language")
		w.Header().Add("Vary", "Cookie")
		w.Header().Add("Vary", "HX-Request")
		next.ServeHTTP(w, r)
	})
}
