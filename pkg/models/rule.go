package models

// RuleComponent is one predicate (condition) or result (action) inside a
// rule. ActionName keys into the protocol's predicate or result registry.
type RuleComponent struct {
	ComponentID string `json:"componentid"`
	IsPredicate bool   `json:"ispredicate"`
	ActionName  string `json:"actionname"`
	ActionValue string `json:"actionvalue"`
}

// Rule is an ordered, zone-scoped, protocol-scoped match+action
// specification. Lower priority values evaluate first.
type Rule struct {
	RuleID          string          `json:"ruleid"`
	Zone            string          `json:"zone"`
	Name            string          `json:"name"`
	NetworkProtocol string          `json:"networkprotocol"`
	Priority        int             `json:"priority"`
	Components      []RuleComponent `json:"rulecomponents"`
}

// Predicates returns the rule's predicate components in declared order.
func (r *Rule) Predicates() []RuleComponent {
	var out []RuleComponent
	for _, c := range r.Components {
		if c.IsPredicate {
			out = append(out, c)
		}
	}
	return out
}

// Results returns the rule's result components in declared order.
func (r *Rule) Results() []RuleComponent {
	var out []RuleComponent
	for _, c := range r.Components {
		if !c.IsPredicate {
			out = append(out, c)
		}
	}
	return out
}
