package api

import (
	"net/http"
	"time"

	"github.com/mrkeshav-05/learning-backend/auth"
)

// CookieConfig controls the token cookies. Secure should only be off for
// local plain-HTTP development.
type CookieConfig struct {
	Secure     bool
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (cc CookieConfig) tokenCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cc.Domain,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (cc CookieConfig) setTokens(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, cc.tokenCookie(auth.AccessTokenCookie, pair.AccessToken, cc.AccessTTL))
	http.SetCookie(w, cc.tokenCookie(auth.RefreshTokenCookie, pair.RefreshToken, cc.RefreshTTL))
}

// clearTokens expires both cookies. A negative MaxAge is sent as Max-Age=0.
func (cc CookieConfig) clearTokens(w http.ResponseWriter) {
	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie} {
		c := cc.tokenCookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
