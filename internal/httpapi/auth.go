package httpapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

// SessionCookie carries the login token issued by POST /login.
const SessionCookie = "mission-control-pw"

func sessionToken(password string) string {
	sum := sha256.Sum256([]byte("missionctl:" + password))
	return hex.EncodeToString(sum[:])
}

func equalSecret(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// passwordMiddleware admits requests carrying the session cookie or the password
// in X-API-Key. /health, /metrics and /login stay open.
func passwordMiddleware(password string, next http.Handler) http.Handler {
	token := sessionToken(password)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/metrics", "/login":
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if key := r.Header.Get("X-API-Key"); key != "" && equalSecret(key, password) {
			next.ServeHTTP(w, r)
			return
		}
		if c, err := r.Cookie(SessionCookie); err == nil && equalSecret(c.Value, token) {
			next.ServeHTTP(w, r)
			return
		}
		writeJSONError(w, http.StatusUnauthorized, "login required")
	})
}

// loginHandler exchanges the password for a session cookie. With no password
// configured every login succeeds.
func loginHandler(password string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if password == "" {
			writeJSON(w, map[string]any{"ok": true})
			return
		}
		var body struct {
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		if !equalSecret(body.Password, password) {
			writeJSONError(w, http.StatusUnauthorized, "invalid password")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sessionToken(password),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, map[string]any{"ok": true})
	}
}
