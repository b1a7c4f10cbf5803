package server

import (
	"encoding/json"
	"net/http"

	"github.com/workspace/agent-gateway/internal/errs"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a single-message JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForKind maps an error Kind to its default HTTP disposition per
// spec.md §7. PathDenied defaults to 400 (task submission); the excerpt
// handler overrides it to 403 since one caller's workspace escape must
// not look like an ordinary bad-request to a poller.
func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindInvalidInput, errs.KindInjectionBlocked, errs.KindPathDenied:
		return http.StatusBadRequest
	case errs.KindBusy:
		return http.StatusServiceUnavailable
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeTypedError maps err's Kind to its HTTP disposition and writes the
// corresponding body. extra fields (e.g. active_session) are merged into
// the response when non-nil. A zero statusOverride uses statusForKind.
func writeTypedError(w http.ResponseWriter, err error, extra map[string]any, statusOverride int) {
	e, ok := errs.As(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := statusOverride
	if status == 0 {
		status = statusForKind(e.Kind)
	}

	body := map[string]any{"error": e.Message}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}
