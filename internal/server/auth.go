// auth.go - Session cookies and the authentication gate.
//
// Sessions are signed tokens minted by the session package and carried
// in an HttpOnly cookie scoped to the mount prefix.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"share-drop/internal/config"
	"share-drop/internal/credentials"
	"share-drop/internal/session"
)

// AuthConfig holds the account list, the token manager and the cookie
// settings.
type AuthConfig struct {
	Users        *credentials.Store
	Sessions     *session.Manager
	CookieName   string
	CookieSecure config.CookieSecureMode
}

const userKey ctxKey = "user_email"

func (a AuthConfig) cookieName() string {
	if a.CookieName == "" {
		return "share_session"
	}
	return a.CookieName
}

func (a AuthConfig) secure(r *http.Request) bool {
	switch a.CookieSecure {
	case config.CookieSecureAlways:
		return true
	case config.CookieSecureNever:
		return false
	default:
		return isHTTPS(r)
	}
}

// currentUser returns the email bound to the request's session cookie,
// or "" for anonymous requests. Sessions of accounts no longer in the
// credential file are ignored.
func (a AuthConfig) currentUser(r *http.Request) string {
	if email, ok := r.Context().Value(userKey).(string); ok {
		return email
	}
	c, err := r.Cookie(a.cookieName())
	if err != nil || c.Value == "" {
		return ""
	}
	claims, err := a.Sessions.Parse(c.Value)
	if err != nil {
		return ""
	}
	email := claims.Email()
	if !a.Users.Has(email) {
		return ""
	}
	return email
}

func (a AuthConfig) setSessionCookie(w http.ResponseWriter, r *http.Request, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName(),
		Value:    token,
		Path:     basePath(r),
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.secure(r),
	})
}

func (a AuthConfig) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName(),
		Value:    "",
		Path:     basePath(r),
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.secure(r),
	})
}

// requireAPIAuth answers unauthenticated requests with a JSON 401 that
// tells the client to log in.
func (a AuthConfig) requireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := a.currentUser(r)
		if email == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":          "Authentication required",
				"login_required": true,
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, email)))
	})
}

// requirePageAuth redirects unauthenticated browsers to the login page.
func (a AuthConfig) requirePageAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := a.currentUser(r)
		if email == "" {
			http.Redirect(w, r, basePath(r)+"login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, email)))
	})
}

// loginPageHandler sends GET /login to the index, which carries the form.
func (cfg Config) loginPageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, basePath(r), http.StatusSeeOther)
	})
}

// loginHandler checks the username/password form fields against the
// credential store. On success a freshly minted session replaces any
// previous one.
func (cfg Config) loginHandler(rl *rateLimiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if !rl.allow(ip) {
			cfg.Metrics.logins.WithLabelValues("throttled").Inc()
			cfg.Logger.Warn("login throttled", zap.String("ip", ip))
			http.Error(w, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(r.PostForm.Get("username"))
		password := r.PostForm.Get("password")

		if email == "" || password == "" || !cfg.Auth.Users.Verify(email, password) {
			cfg.Metrics.logins.WithLabelValues("failure").Inc()
			cfg.Logger.Info("login failed",
				zap.String("rid", RequestIDFromContext(r.Context())),
				zap.String("email", email),
				zap.String("ip", ip))
			cfg.renderIndex(w, r, "", http.StatusOK, "Invalid email or password")
			return
		}

		token, exp, err := cfg.Auth.Sessions.Issue(email)
		if err != nil {
			cfg.Logger.Error("issue session", zap.Error(err))
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		cfg.Auth.setSessionCookie(w, r, token, exp)
		cfg.Metrics.logins.WithLabelValues("success").Inc()
		cfg.Logger.Info("login", zap.String("email", email), zap.String("ip", ip))

		http.Redirect(w, r, basePath(r), http.StatusSeeOther)
	})
}

// logoutHandler clears the session cookie and returns to the index.
func (cfg Config) logoutHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg.Auth.clearSessionCookie(w, r)
		http.Redirect(w, r, basePath(r), http.StatusSeeOther)
	})
}
