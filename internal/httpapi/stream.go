package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/stream"
)

// WithAuditStream enables GET /v1/audit-logs/stream over hub.
func WithAuditStream(hub *stream.Hub[audit.Entry]) Option {
	return func(a *API) {
		a.events = hub
	}
}

// streamAuditLogs pushes new audit entries in the caller's scope as
// Server-Sent Events.
func (a *API) streamAuditLogs(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	scope, err := a.svc.AuditScope(r.Context(), principal(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.events.Subscribe(ctx)

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for entry := range ch {
		if !scope.AllowsEntry(entry) {
			continue
		}
		payload, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("event: audit\ndata: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
