package middleware

import (
	"context"
	"net/http"
)

// HTMX marks requests coming from htmx so handlers/middlewares can adapt responses
func HTMX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is := r.Header.Get("HX-Request") == "true"
		ctx := WithHTMX(r.Context(), is)
		if is {
			ctx = context.WithValue(ctx, ctxKeyHXTarget, r.Header.Get("HX-Target"))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PushURL asks htmx to push url onto the browser history after swapping.
func PushURL(w http.ResponseWriter, url string) {
	w.Header().Set("HX-Push-Url", url)
}
