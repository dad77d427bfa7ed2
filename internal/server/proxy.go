package server

import (
	"context"
	"net/http"
	"strings"
)

const prefixKey ctxKey = "script_name"

// proxyMiddleware honours X-Script-Name from a reverse proxy that mounts
// the service below a path prefix. The prefix is stripped from the
// request path and kept in the context for redirects and cookie paths.
func proxyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := cleanPrefix(r.Header.Get("X-Script-Name"))
		if prefix == "" {
			next.ServeHTTP(w, r)
			return
		}

		r2 := r.WithContext(context.WithValue(r.Context(), prefixKey, prefix))
		if p := r.URL.Path; p == prefix || strings.HasPrefix(p, prefix+"/") {
			u := *r.URL
			u.Path = strings.TrimPrefix(p, prefix)
			if u.Path == "" {
				u.Path = "/"
			}
			u.RawPath = ""
			r2.URL = &u
		}
		next.ServeHTTP(w, r2)
	})
}

// cleanPrefix normalises a mount prefix to "/a/b" form, or "" for none.
func cleanPrefix(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" || strings.ContainsAny(p, "\r\n\"?#") {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// basePath returns the externally visible root of the service, always
// ending in "/".
func basePath(r *http.Request) string {
	if p, ok := r.Context().Value(prefixKey).(string); ok && p != "" {
		return p + "/"
	}
	return "/"
}

// isHTTPS reports whether the client connection is TLS, directly or at
// the proxy.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}
