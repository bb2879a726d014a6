package dnssrv

import (
	"testing"

	"github.com/org/dusseldorf/internal/rules"
	"github.com/org/dusseldorf/pkg/models"
)

func dnsRule(id string, priority int, components ...models.RuleComponent) models.Rule {
	return models.Rule{
		RuleID:          id,
		Zone:            "test.example.net",
		Name:            id,
		NetworkProtocol: "DNS",
		Priority:        priority,
		Components:      components,
	}
}

func pred(name, value string) models.RuleComponent {
	return models.RuleComponent{ComponentID: name, IsPredicate: true, ActionName: name, ActionValue: value}
}

func res(name, value string) models.RuleComponent {
	return models.RuleComponent{ComponentID: name, IsPredicate: false, ActionName: name, ActionValue: value}
}

func evaluate(t *testing.T, req *Request, zoneRules ...models.Rule) *Response {
	t.Helper()
	resp := rules.Evaluate(req, zoneRules, Registry())
	out, ok := resp.(*Response)
	if !ok {
		t.Fatalf("expected *Response, got %T", resp)
	}
	return out
}

func TestDefaultResponseUsesDomainIP(t *testing.T) {
	req := &Request{
		Name:       "probe.test.example.net",
		QType:      "A",
		ZoneFQDN:   "test.example.net",
		DefaultIPs: []string{"198.51.100.7", "198.51.100.8"},
	}
	resp := evaluate(t, req)
	if resp.RType != "A" || resp.Data != "198.51.100.7" {
		t.Errorf("expected default A answer with first public IP, got %s %s", resp.RType, resp.Data)
	}
	if resp.TTL != 60 || resp.Rcode != "NOERROR" {
		t.Errorf("expected ttl 60 NOERROR, got %d %s", resp.TTL, resp.Rcode)
	}
}

func TestTxtOverrideRule(t *testing.T) {
	txt := dnsRule("txt", 10,
		pred("dns.type", "^TXT$"),
		res("dns.response.type", "TXT"),
		res("dns.response.data", "\"hello\""),
		res("dns.response.ttl", "300"))

	req := &Request{Name: "x.test.example.net", QType: "TXT", ZoneFQDN: "test.example.net"}
	resp := evaluate(t, req, txt)
	if resp.RType != "TXT" || resp.Data != "\"hello\"" || resp.TTL != 300 {
		t.Errorf("unexpected answer: %s %q ttl=%d", resp.RType, resp.Data, resp.TTL)
	}

	// An A query does not satisfy the type predicate.
	req.QType = "A"
	resp = evaluate(t, req, txt)
	if resp.RType != "A" {
		t.Errorf("expected default answer for A query, got %s", resp.RType)
	}
}

func TestNxdomainRule(t *testing.T) {
	nx := dnsRule("nx", 10,
		pred("dns.name", "^hidden\\."),
		res("dns.response.code", "nxdomain"))

	req := &Request{Name: "hidden.test.example.net", QType: "A", ZoneFQDN: "test.example.net"}
	resp := evaluate(t, req, nx)
	if resp.Rcode != "NXDOMAIN" {
		t.Errorf("expected NXDOMAIN (uppercased), got %s", resp.Rcode)
	}
}

func TestMatchersAreCaseInsensitive(t *testing.T) {
	req := &Request{Name: "sub.test.example.net", QType: "A"}
	if !matchQType(req, "^a$") {
		t.Error("dns.type should match case-insensitively")
	}
	if !matchName(req, "SUB\\.TEST") {
		t.Error("dns.name should match case-insensitively")
	}
}

func TestEmptyPatternAlwaysMatches(t *testing.T) {
	req := &Request{Name: "x.test.example.net", QType: "AAAA"}
	if !matchQType(req, "") || !matchName(req, "") {
		t.Error("empty predicate parameter should always match")
	}
}

func TestInvalidPatternNeverMatches(t *testing.T) {
	req := &Request{Name: "x.test.example.net", QType: "A"}
	if matchName(req, "([") {
		t.Error("invalid regex should never match")
	}
}

func TestSetTTLKeepsCurrentOnInvalid(t *testing.T) {
	resp := &Response{RType: "A", TTL: 60}
	out := setTTL(resp, "abc").(*Response)
	if out.TTL != 60 {
		t.Errorf("invalid ttl parameter should keep current ttl, got %d", out.TTL)
	}
	out = setTTL(resp, "-5").(*Response)
	if out.TTL != 60 {
		t.Errorf("negative ttl should keep current ttl, got %d", out.TTL)
	}
}

func TestDefaultResponseNoIPs(t *testing.T) {
	req := &Request{Name: "x.test.example.net", QType: "A", ZoneFQDN: "test.example.net"}
	resp := evaluate(t, req)
	if resp.Data != "" {
		t.Errorf("no public IPs configured should yield empty data, got %q", resp.Data)
	}
}
