package smtpsrv

import (
	"testing"

	"github.com/org/dusseldorf/internal/rules"
	"github.com/org/dusseldorf/pkg/models"
)

func smtpRule(id string, priority int, components ...models.RuleComponent) models.Rule {
	return models.Rule{
		RuleID:          id,
		Zone:            "test.example.net",
		Name:            id,
		NetworkProtocol: "SMTP",
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

func TestDefaultResponseIs250(t *testing.T) {
	req := &Request{ZoneFQDN: "test.example.net", MailFrom: "a@b.com"}
	resp := evaluate(t, req)
	if resp.Code != 250 || resp.Message != "OK" {
		t.Errorf("expected 250 OK, got %d %q", resp.Code, resp.Message)
	}
}

func TestRelayDenyRule(t *testing.T) {
	deny := smtpRule("deny-admin", 10,
		pred("smtp.to", "^admin@"),
		res("smtp.response.code", "550"),
		res("smtp.response.message", "Relay denied"))

	req := &Request{
		ZoneFQDN: "test.example.net",
		MailFrom: "probe@attacker.net",
		RcptTos:  []string{"admin@test.example.net"},
	}
	resp := evaluate(t, req, deny)
	if resp.Code != 550 || resp.Message != "Relay denied" {
		t.Errorf("expected 550 Relay denied, got %d %q", resp.Code, resp.Message)
	}

	// A recipient the predicate does not match falls through to 250 OK.
	req.RcptTos = []string{"support@test.example.net"}
	resp = evaluate(t, req, deny)
	if resp.Code != 250 || resp.Message != "OK" {
		t.Errorf("expected 250 OK, got %d %q", resp.Code, resp.Message)
	}
}

func TestMatchToAnyRecipient(t *testing.T) {
	req := &Request{
		RcptTos: []string{"first@x.net", "admin@x.net"},
	}
	if !matchTo(req, "^admin@") {
		t.Error("predicate should match when any recipient matches")
	}
	if matchTo(req, "^nobody@") {
		t.Error("predicate should not match when no recipient matches")
	}
}

func TestMatchersAreCaseInsensitive(t *testing.T) {
	req := &Request{MailFrom: "Alice@Example.NET", Data: "Subject: HELLO"}
	if !matchFrom(req, "alice@example") {
		t.Error("smtp.from should match case-insensitively")
	}
	if !matchData(req, "subject: hello") {
		t.Error("smtp.data.contains should match case-insensitively")
	}
}

func TestMatchDataSpansLines(t *testing.T) {
	req := &Request{Data: "line one\nline two\n"}
	if !matchData(req, "one.line") {
		t.Error("smtp.data.contains dot should cross newlines")
	}
}

func TestEmptyParameterAlwaysMatches(t *testing.T) {
	req := &Request{MailFrom: "x@y.net", RcptTos: []string{"a@b.net"}, Data: "body"}
	if !matchFrom(req, "") || !matchTo(req, "") || !matchData(req, "") {
		t.Error("empty predicate parameter should always match")
	}
}

func TestInvalidRegexNeverMatches(t *testing.T) {
	req := &Request{MailFrom: "x@y.net"}
	if matchFrom(req, "([") {
		t.Error("invalid regex should never match")
	}
}

func TestSetCodeKeepsCurrentOnInvalid(t *testing.T) {
	resp := &Response{Code: 250, Message: "OK"}
	out := setCode(resp, "not-a-number").(*Response)
	if out.Code != 250 {
		t.Errorf("invalid code parameter should keep current code, got %d", out.Code)
	}
	out = setCode(resp, "451").(*Response)
	if out.Code != 451 {
		t.Errorf("expected 451, got %d", out.Code)
	}
}
