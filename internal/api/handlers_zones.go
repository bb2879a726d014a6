package api

import (
	"crypto/rand"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/org/dusseldorf/internal/authz"
	"github.com/org/dusseldorf/internal/storage"
	"github.com/org/dusseldorf/pkg/models"
	"github.com/rs/zerolog/log"
)

// requireZone loads the zone and enforces the actor's permission on it.
// On failure it writes the response and returns ok=false.
func (s *Server) requireZone(w http.ResponseWriter, r *http.Request, fqdn string, required models.Permission) (*models.Zone, bool) {
	actor := actorFromCtx(r.Context())
	zone, err := s.store.GetZone(r.Context(), strings.ToLower(fqdn))
	if err != nil {
		writeStorageError(w, err)
		return nil, false
	}
	if !authz.HasAtLeast(actor, zone, required) {
		authFailures.WithLabelValues("forbidden").Inc()
		log.Warn().
			Str("user", actor.Username).
			Str("zone", zone.FQDN).
			Str("required", required.String()).
			Msg("permission denied")
		writeError(w, http.StatusForbidden, "unauthorized")
		return nil, false
	}
	return zone, true
}

// DomainListHandler handles GET /domains.
func (s *Server) DomainListHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromCtx(r.Context())
	domains, err := s.store.ListDomains(r.Context())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	names := []string{}
	for _, d := range domains {
		if actor.IsAdmin() || d.Owner == actor.Username || d.Owner == models.SharedOwner {
			names = append(names, d.Domain)
		}
	}
	writeJSON(w, http.StatusOK, names)
}

// ZoneCreateHandler handles POST /zones. With an explicit zone name it
// creates that zone; without one it mints num random zones under the
// given domain. The caller becomes the owner either way.
func (s *Server) ZoneCreateHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromCtx(r.Context())

	var req struct {
		Zone   string `json:"zone"`
		Domain string `json:"domain"`
		Num    int    `json:"num"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Zone = strings.ToLower(strings.TrimSuffix(req.Zone, "."))
	req.Domain = strings.ToLower(req.Domain)

	var created []string
	switch {
	case req.Zone != "":
		domain, err := s.domainForZone(r, req.Zone, req.Domain)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zone := &models.Zone{FQDN: req.Zone, Domain: domain, Owner: actor.Username}
		if err := s.store.CreateZone(r.Context(), zone); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				writeError(w, http.StatusConflict, "zone already exists")
				return
			}
			writeStorageError(w, err)
			return
		}
		created = append(created, zone.FQDN)

	default:
		if req.Domain == "" {
			writeError(w, http.StatusBadRequest, "zone or domain is required")
			return
		}
		if _, err := s.store.GetDomain(r.Context(), req.Domain); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "unknown domain")
				return
			}
			writeStorageError(w, err)
			return
		}
		num := req.Num
		if num < 1 {
			num = 1
		}
		if num > 10 {
			num = 10
		}
		for i := 0; i < num; i++ {
			zone := &models.Zone{
				FQDN:   randomLabel() + "." + req.Domain,
				Domain: req.Domain,
				Owner:  actor.Username,
			}
			if err := s.store.CreateZone(r.Context(), zone); err != nil {
				if errors.Is(err, storage.ErrAlreadyExists) {
					i-- // label collision, roll again
					continue
				}
				writeStorageError(w, err)
				return
			}
			created = append(created, zone.FQDN)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{"zones": created})
}

// domainForZone resolves and validates the parent domain of a zone name.
func (s *Server) domainForZone(r *http.Request, zone, domain string) (string, error) {
	domains, err := s.store.ListDomains(r.Context())
	if err != nil {
		return "", errors.New("storage unavailable")
	}
	for _, d := range domains {
		if domain != "" && d.Domain != domain {
			continue
		}
		if zone == d.Domain || strings.HasSuffix(zone, "."+d.Domain) {
			return d.Domain, nil
		}
	}
	return "", errors.New("zone is not under a registered domain")
}

// ZoneListHandler handles GET /zones — every zone the actor can at
// least read.
func (s *Server) ZoneListHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromCtx(r.Context())
	zones, err := s.store.ListZones(r.Context())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	visible := []*models.Zone{}
	for _, z := range zones {
		if authz.HasAtLeast(actor, z, models.ReadOnly) {
			visible = append(visible, z)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

// ZoneGetHandler handles GET /zones/{fqdn}.
func (s *Server) ZoneGetHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "fqdn"), models.ReadOnly)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

// ZoneDeleteHandler handles DELETE /zones/{fqdn}. Owner only.
func (s *Server) ZoneDeleteHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "fqdn"), models.Owner)
	if !ok {
		return
	}
	if err := s.store.DeleteZone(r.Context(), zone.FQDN); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PermissionListHandler handles GET /zones/{fqdn}/permissions.
func (s *Server) PermissionListHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "fqdn"), models.ReadOnly)
	if !ok {
		return
	}
	entries := zone.Authz
	if entries == nil {
		entries = []models.AuthzEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// PermissionSetHandler handles PUT /zones/{fqdn}/permissions.
// Requires AssignRoles on the zone.
func (s *Server) PermissionSetHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "fqdn"), models.AssignRoles)
	if !ok {
		return
	}
	var req struct {
		Alias      string `json:"alias"`
		Permission string `json:"permission"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Alias == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	level := models.ParsePermission(req.Permission)
	// Admin is global-only; it cannot be granted per zone.
	if level == models.NoPermission || level == models.Admin {
		writeError(w, http.StatusBadRequest, "invalid permission")
		return
	}
	if err := s.store.SetZoneAuthz(r.Context(), zone.FQDN, req.Alias, level); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PermissionRemoveHandler handles DELETE /zones/{fqdn}/permissions/{alias}.
func (s *Server) PermissionRemoveHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "fqdn"), models.AssignRoles)
	if !ok {
		return
	}
	if err := s.store.RemoveZoneAuthz(r.Context(), zone.FQDN, chi.URLParam(r, "alias")); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const labelAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomLabel returns an 8-character DNS label from a CSPRNG.
func randomLabel() string {
	b := make([]byte, 8)
	rand.Read(b) //nolint:errcheck
	for i := range b {
		b[i] = labelAlphabet[int(b[i])%len(labelAlphabet)]
	}
	return string(b)
}
