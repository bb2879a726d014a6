package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/org/dusseldorf/internal/storage"
	"github.com/org/dusseldorf/pkg/models"
)

// RequestListHandler handles GET /requests/{zone} — the zone's
// interaction log, newest first, optionally filtered by
// ?protocols=DNS,SMTP and paginated with ?skip= and ?limit=.
// ReadOnly required.
func (s *Server) RequestListHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "zone"), models.ReadOnly)
	if !ok {
		return
	}

	filter := storage.InteractionFilter{
		Zone:  zone.FQDN,
		Skip:  intQuery(r, "skip", 0, 0, 1<<30),
		Limit: intQuery(r, "limit", 100, 1, 1000),
	}
	if protos := r.URL.Query().Get("protocols"); protos != "" {
		for _, p := range strings.Split(protos, ",") {
			filter.Protocols = append(filter.Protocols, strings.ToUpper(strings.TrimSpace(p)))
		}
	}

	entries, err := s.store.QueryInteractions(r.Context(), filter)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.Interaction{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// RequestGetHandler handles GET /requests/{zone}/{timestamp}.
func (s *Server) RequestGetHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "zone"), models.ReadOnly)
	if !ok {
		return
	}
	ts, err := strconv.ParseInt(chi.URLParam(r, "timestamp"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timestamp")
		return
	}
	entry, err := s.store.GetInteraction(r.Context(), zone.FQDN, ts)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func intQuery(r *http.Request, key string, def, min, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}
