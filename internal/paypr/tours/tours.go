// Package tours remembers which guided tours a visitor has finished.
package tours

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// CookieName is the only client-side key the application persists.
const CookieName = "paypr_tours_completed"

const cookieMaxAge = 365 * 24 * time.Hour

// Known tours.
const (
	Reader    = "reader"
	Author    = "author"
	Publisher = "publisher"
)

// Completed maps a tour name to whether it was finished.
type Completed map[string]bool

// Load reads the completion map from the request. Missing or corrupt values
// read as empty.
func Load(r *http.Request) Completed {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Completed{}
	}
	return decode(cookie.Value)
}

// HasCompleted reports whether tour was finished.
func (c Completed) HasCompleted(tour string) bool {
	return c[tour]
}

// Names returns the finished tours in sorted order.
func (c Completed) Names() []string {
	names := make([]string, 0, len(c))
	for name, done := range c {
		if done {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// MarkComplete records tour as finished and writes the cookie.
func MarkComplete(w http.ResponseWriter, r *http.Request, tour string, secure bool) Completed {
	completed := Load(r)
	completed[tour] = true
	encoded, err := json.Marshal(completed)
	if err != nil {
		return completed
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    base64.RawURLEncoding.EncodeToString(encoded),
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return completed
}

// Reset forgets every finished tour.
func Reset(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func decode(value string) Completed {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Completed{}
	}
	var completed Completed
	if err := json.Unmarshal(raw, &completed); err != nil || completed == nil {
		return Completed{}
	}
	return completed
}
