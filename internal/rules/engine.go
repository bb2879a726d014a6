package rules

import (
	"sort"
	"strings"

	"github.com/org/dusseldorf/pkg/models"
	"github.com/rs/zerolog/log"
)

// Evaluate maps a request to a response by walking the zone's rules.
//
// Rules are filtered to the request's protocol and evaluated in
// (priority, ruleid) order. A rule matches when every one of its
// predicate components is satisfied; an empty predicate set always
// matches. The first matching rule's result components are applied, in
// declared order, to the protocol's default response, and evaluation
// stops there. When no rule matches, the default response is returned
// unchanged.
//
// Evaluate never panics outward and never returns nil: a misbehaving
// predicate counts as unsatisfied, a misbehaving result leaves the
// response untouched, and both are surfaced only as log entries.
func Evaluate(req Request, zoneRules []models.Rule, reg *Registry) Response {
	matched := ForProtocol(zoneRules, req.Protocol())

	for i := range matched {
		rule := &matched[i]
		if !ruleMatches(req, rule, reg) {
			continue
		}
		return applyResults(req, rule, reg)
	}
	return req.DefaultResponse()
}

// ForProtocol returns the rules for the given protocol tag sorted by
// ascending priority, ties broken by ruleid for deterministic order.
func ForProtocol(all []models.Rule, protocol string) []models.Rule {
	out := make([]models.Rule, 0, len(all))
	for _, r := range all {
		if strings.EqualFold(r.NetworkProtocol, protocol) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}

// ruleMatches reports whether every predicate component of the rule is
// satisfied (AND semantics, short-circuit on the first failure).
func ruleMatches(req Request, rule *models.Rule, reg *Registry) bool {
	for _, c := range rule.Predicates() {
		pred, ok := reg.Predicate(c.ActionName)
		if !ok {
			// Unknown key is a data problem: fail the rule closed.
			log.Warn().
				Str("zone", rule.Zone).
				Str("rule", rule.RuleID).
				Str("action", c.ActionName).
				Msg("unknown predicate key, rule will not match")
			return false
		}
		if !safeMatch(pred, req, c.ActionValue, rule) {
			return false
		}
	}
	return true
}

// applyResults threads the default response through the matched rule's
// result components in declared order.
func applyResults(req Request, rule *models.Rule, reg *Registry) Response {
	resp := req.DefaultResponse()
	for _, c := range rule.Results() {
		res, ok := reg.Result(c.ActionName)
		if !ok {
			log.Warn().
				Str("zone", rule.Zone).
				Str("rule", rule.RuleID).
				Str("action", c.ActionName).
				Msg("unknown result key, component skipped")
			continue
		}
		resp = safeApply(res, resp, c.ActionValue, rule)
	}
	return resp
}

// safeMatch runs a predicate, converting a panic into "unsatisfied".
// A request must always get some response; a broken component may not
// take the listener down.
func safeMatch(p Predicate, req Request, param string, rule *models.Rule) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("zone", rule.Zone).
				Str("rule", rule.RuleID).
				Interface("panic", r).
				Msg("predicate failed, treating as unsatisfied")
			ok = false
		}
	}()
	return p.Matches(req, param)
}

// safeApply runs a result, converting a panic into a no-op for that
// component.
func safeApply(res Result, resp Response, param string, rule *models.Rule) (out Response) {
	out = resp
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("zone", rule.Zone).
				Str("rule", rule.RuleID).
				Interface("panic", r).
				Msg("result failed, component skipped")
			out = resp
		}
	}()
	if next := res.Apply(resp, param); next != nil {
		out = next
	}
	return out
}
