package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/flipwise/flipwise/internal/apperr"
	"github.com/flipwise/flipwise/internal/ctxkeys"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError is the single place errors become HTTP responses. Wrapped
// store and driver errors never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	body := map[string]any{"error": apperr.PublicMessage(err)}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindUpstream && appErr.Status > 0 {
		body["provider_status"] = appErr.Status
	}

	attrs := []any{
		"request_id", ctxkeys.RequestID(r.Context()),
		"path", r.URL.Path,
		"kind", kind.String(),
		"error", err,
	}
	switch kind {
	case apperr.KindInternal, apperr.KindConfiguration:
		slog.Error("request failed", attrs...)
	case apperr.KindUpstream, apperr.KindUpstreamTimeout:
		slog.Warn("request failed", attrs...)
	default:
		slog.Debug("request rejected", attrs...)
	}

	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}
