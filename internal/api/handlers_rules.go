package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/org/dusseldorf/pkg/models"
)

// RuleListHandler handles GET /zones/{fqdn}/rules, optionally filtered
// by ?protocol=. ReadOnly required.
func (s *Server) RuleListHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "fqdn"), models.ReadOnly)
	if !ok {
		return
	}
	rules, err := s.store.ListRules(r.Context(), zone.FQDN, r.URL.Query().Get("protocol"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if rules == nil {
		rules = []models.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// RuleCreateHandler handles POST /zones/{fqdn}/rules. ReadWrite required.
func (s *Server) RuleCreateHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "fqdn"), models.ReadWrite)
	if !ok {
		return
	}
	var req struct {
		Name            string `json:"name"`
		NetworkProtocol string `json:"networkprotocol"`
		Priority        int    `json:"priority"`
		Components      []struct {
			IsPredicate bool   `json:"ispredicate"`
			ActionName  string `json:"actionname"`
			ActionValue string `json:"actionvalue"`
		} `json:"rulecomponents"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.NetworkProtocol == "" {
		writeError(w, http.StatusBadRequest, "name and networkprotocol are required")
		return
	}

	rule := &models.Rule{
		RuleID:          newUUID(),
		Zone:            zone.FQDN,
		Name:            req.Name,
		NetworkProtocol: req.NetworkProtocol,
		Priority:        req.Priority,
	}
	for _, c := range req.Components {
		if c.ActionName == "" {
			writeError(w, http.StatusBadRequest, "component actionname is required")
			return
		}
		rule.Components = append(rule.Components, models.RuleComponent{
			ComponentID: newUUID(),
			IsPredicate: c.IsPredicate,
			ActionName:  c.ActionName,
			ActionValue: c.ActionValue,
		})
	}

	if err := s.store.CreateRule(r.Context(), rule); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// ruleInZone loads a rule and verifies it belongs to the zone named in
// the path. Rules are zone-scoped; reaching one through another zone's
// path is treated as not-found.
func (s *Server) ruleInZone(w http.ResponseWriter, r *http.Request, zone *models.Zone) (*models.Rule, bool) {
	rule, err := s.store.GetRule(r.Context(), chi.URLParam(r, "ruleid"))
	if err != nil {
		writeStorageError(w, err)
		return nil, false
	}
	if rule.Zone != zone.FQDN {
		writeError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return rule, true
}

// RuleDeleteHandler handles DELETE /zones/{fqdn}/rules/{ruleid}.
func (s *Server) RuleDeleteHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "fqdn"), models.ReadWrite)
	if !ok {
		return
	}
	rule, ok := s.ruleInZone(w, r, zone)
	if !ok {
		return
	}
	if err := s.store.DeleteRule(r.Context(), rule.RuleID); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RulePriorityHandler handles PUT /zones/{fqdn}/rules/{ruleid}/priority.
func (s *Server) RulePriorityHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "fqdn"), models.ReadWrite)
	if !ok {
		return
	}
	rule, ok := s.ruleInZone(w, r, zone)
	if !ok {
		return
	}
	var req struct {
		Priority int `json:"priority"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.store.SetRulePriority(r.Context(), rule.RuleID, req.Priority); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ComponentAddHandler handles POST /zones/{fqdn}/rules/{ruleid}/components.
func (s *Server) ComponentAddHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "fqdn"), models.ReadWrite)
	if !ok {
		return
	}
	rule, ok := s.ruleInZone(w, r, zone)
	if !ok {
		return
	}
	var req struct {
		IsPredicate bool   `json:"ispredicate"`
		ActionName  string `json:"actionname"`
		ActionValue string `json:"actionvalue"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	component := &models.RuleComponent{
		ComponentID: newUUID(),
		IsPredicate: req.IsPredicate,
		ActionName:  req.ActionName,
		ActionValue: req.ActionValue,
	}
	if err := s.store.AddRuleComponent(r.Context(), rule.RuleID, component); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, component)
}

// ComponentRemoveHandler handles
// DELETE /zones/{fqdn}/rules/{ruleid}/components/{componentid}.
func (s *Server) ComponentRemoveHandler(w http.ResponseWriter, r *http.Request) {
	zone, ok := s.requireZone(w, r, chi.URLParam(r, "fqdn"), models.ReadWrite)
	if !ok {
		return
	}
	rule, ok := s.ruleInZone(w, r, zone)
	if !ok {
		return
	}
	if err := s.store.DeleteRuleComponent(r.Context(), rule.RuleID, chi.URLParam(r, "componentid")); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
