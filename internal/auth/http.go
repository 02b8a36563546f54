// ABOUTME: HTTP middleware resolving the session cookie to a user
// ABOUTME: Browser routes redirect to /login, API routes get JSON 401s

package auth

import (
	"net/http"
	"time"

	"github.com/banrovegrie/makearjowork/internal/store"
)

// resolveUser reads the session cookie, verifies the token and loads the
// user from the store. Returns nil if any step fails.
func resolveUser(r *http.Request, s store.Store, sessions *Sessions) *store.User {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	claims, err := sessions.Verify(cookie.Value)
	if err != nil {
		return nil
	}

	user, err := s.GetUser(r.Context(), claims.UserID)
	if err != nil {
		return nil
	}
	return user
}

// RequireUserWeb wraps a browser-facing handler, redirecting anonymous
// requests to the login page.
func RequireUserWeb(s store.Store, sessions *Sessions, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := resolveUser(r, s, sessions)
		if user == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// RequireUserAPI wraps a JSON API handler, rejecting anonymous requests
// with a 401 error body.
func RequireUserAPI(s store.Store, sessions *Sessions, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := resolveUser(r, s, sessions)
		if user == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"not authenticated"}`))
			return
		}
		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// SetSessionCookie attaches the session token to the response. The cookie
// mirrors the original deployment: HttpOnly, SameSite=Lax, Secure over TLS.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
