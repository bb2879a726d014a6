package models

import (
	"testing"
	"time"
)

func TestZoneContains(t *testing.T) {
	z := &Zone{FQDN: "abc.example.net"}

	cases := []struct {
		fqdn string
		want bool
	}{
		{"abc.example.net", true},
		{"deep.sub.abc.example.net", true},
		{"example.net", false},
		{"xabc.example.net", false},
		{"abc.example.org", false},
	}
	for _, tc := range cases {
		if got := z.Contains(tc.fqdn); got != tc.want {
			t.Errorf("Contains(%q): expected %v got %v", tc.fqdn, tc.want, got)
		}
	}
}

func TestZoneIsExpired(t *testing.T) {
	if (&Zone{}).IsExpired() {
		t.Error("zone without expiry should never expire")
	}
	past := time.Now().Add(-time.Minute)
	if !(&Zone{Expiry: &past}).IsExpired() {
		t.Error("zone past its expiry should be expired")
	}
	future := time.Now().Add(time.Hour)
	if (&Zone{Expiry: &future}).IsExpired() {
		t.Error("zone before its expiry should not be expired")
	}
}

func TestParsePermission(t *testing.T) {
	cases := []struct {
		in   string
		want Permission
	}{
		{"readonly", ReadOnly},
		{"READWRITE", ReadWrite},
		{"assignroles", AssignRoles},
		{"owner", Owner},
		{"admin", Admin},
		{"bogus", NoPermission},
		{"", NoPermission},
	}
	for _, tc := range cases {
		if got := ParsePermission(tc.in); got != tc.want {
			t.Errorf("ParsePermission(%q): expected %v got %v", tc.in, tc.want, got)
		}
	}
}

func TestPermissionLadderOrder(t *testing.T) {
	ladder := []Permission{NoPermission, ReadOnly, ReadWrite, AssignRoles, Owner, Admin}
	for i := 1; i < len(ladder); i++ {
		if ladder[i-1] >= ladder[i] {
			t.Errorf("%v should be below %v", ladder[i-1], ladder[i])
		}
	}
}

func TestRulePredicateResultPartition(t *testing.T) {
	r := Rule{Components: []RuleComponent{
		{ComponentID: "p1", IsPredicate: true},
		{ComponentID: "r1"},
		{ComponentID: "p2", IsPredicate: true},
		{ComponentID: "r2"},
	}}

	preds := r.Predicates()
	if len(preds) != 2 || preds[0].ComponentID != "p1" || preds[1].ComponentID != "p2" {
		t.Errorf("unexpected predicates: %v", preds)
	}
	results := r.Results()
	if len(results) != 2 || results[0].ComponentID != "r1" || results[1].ComponentID != "r2" {
		t.Errorf("unexpected results: %v", results)
	}
}
