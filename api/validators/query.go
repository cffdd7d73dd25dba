package validators

import (
	"net/http"
	"strconv"
	"strings"
)

// QueryInt reads an integer query parameter. Missing or malformed values
// fall back to defaultVal; range coercion is left to the caller.
func QueryInt(r *http.Request, key string, defaultVal int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return value
}

// QueryString reads a trimmed query parameter capped at maxLen bytes.
func QueryString(r *http.Request, key string, maxLen int) string {
	return SanitizeString(r.URL.Query().Get(key), maxLen)
}
