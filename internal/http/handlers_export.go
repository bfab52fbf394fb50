package http

import (
	"encoding/json"
	"net/http"

	"simpleexpenses/internal/amqp"
	applog "simpleexpenses/internal/log"
)

// handleExport triggers a CSV export. With a broker configured the job is
// queued and picked up by the export worker; otherwise the snapshot is
// written synchronously before responding.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Scope string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if body.Scope == "" {
		body.Scope = amqp.ScopeAll
	}
	if body.Scope != amqp.ScopeAll && body.Scope != amqp.ScopePaid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scope must be all or paid"})
		return
	}

	logger := applog.FromContext(r.Context())

	if s.publisher != nil {
		if err := s.publisher.PublishExportJob(r.Context(), body.Scope); err != nil {
			logger.Error("Failed to queue export, falling back to synchronous",
				applog.NewFields().
					WithOperation(applog.OpExport).
					WithScope(body.Scope).
					WithError(err).
					ToSlice()...)
		} else {
			writeJSON(w, http.StatusAccepted, map[string]string{
				"status": "queued",
				"scope":  body.Scope,
			})
			return
		}
	}

	path, rows, err := s.exporter.Export(r.Context(), body.Scope)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Info("Export written",
		applog.NewFields().
			WithOperation(applog.OpExport).
			WithScope(body.Scope).
			WithExportPath(path).
			ToSlice()...)

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "written",
		"scope":  body.Scope,
		"path":   path,
		"rows":   rows,
	})
}
