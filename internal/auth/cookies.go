package auth

import (
	"net/http"
	"strings"
)

const AccessCookieName = "cm_access"

// AccessToken extracts the raw token from the access cookie, falling back to
// an Authorization: Bearer header when allowBearer is set.
func AccessToken(r *http.Request, allowBearer bool) string {
	if cookie, err := r.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if !allowBearer {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
