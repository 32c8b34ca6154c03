package middleware

import (
	"encoding/json"
	"net/http"

	"drawtica/internal/i18n"
)

// writeError replies with the localized {"error", "code"} body handlers use.
func writeError(w http.ResponseWriter, r *http.Request, status int, code string, key i18n.Key) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": i18n.T(LocaleFromContext(r.Context()), key),
		"code":  code,
	})
}
