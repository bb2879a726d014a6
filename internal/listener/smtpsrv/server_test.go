package smtpsrv

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/org/dusseldorf/internal/listener"
	"github.com/org/dusseldorf/internal/storage"
	"github.com/org/dusseldorf/pkg/models"
)

// fakeBackend serves one zone and its rules; everything else is empty.
type fakeBackend struct {
	zone         *models.Zone
	rules        []models.Rule
	interactions []*models.Interaction
}

func (f *fakeBackend) GetUser(context.Context, string) (*models.User, error) {
	return nil, storage.ErrNotFound
}
func (f *fakeBackend) UpsertUser(context.Context, *models.User) error    { return nil }
func (f *fakeBackend) DeleteUser(context.Context, string) error          { return nil }
func (f *fakeBackend) ListUsers(context.Context) ([]*models.User, error) { return nil, nil }

func (f *fakeBackend) InsertSession(context.Context, *models.Session) error { return nil }
func (f *fakeBackend) GetSession(context.Context, string) (*models.Session, error) {
	return nil, storage.ErrNotFound
}
func (f *fakeBackend) DeleteSession(context.Context, string) error      { return nil }
func (f *fakeBackend) DeleteUserSessions(context.Context, string) error { return nil }

func (f *fakeBackend) ListDomains(context.Context) ([]*models.Domain, error) { return nil, nil }
func (f *fakeBackend) GetDomain(context.Context, string) (*models.Domain, error) {
	return nil, storage.ErrNotFound
}
func (f *fakeBackend) UpsertDomain(context.Context, *models.Domain) error { return nil }

func (f *fakeBackend) CreateZone(context.Context, *models.Zone) error { return nil }
func (f *fakeBackend) GetZone(context.Context, string) (*models.Zone, error) {
	return nil, storage.ErrNotFound
}
func (f *fakeBackend) ListZones(context.Context) ([]*models.Zone, error) { return nil, nil }
func (f *fakeBackend) DeleteZone(context.Context, string) error          { return nil }
func (f *fakeBackend) SetZoneAuthz(context.Context, string, string, models.Permission) error {
	return nil
}
func (f *fakeBackend) RemoveZoneAuthz(context.Context, string, string) error { return nil }

func (f *fakeBackend) FindZoneForFQDN(_ context.Context, fqdn string) (*models.Zone, error) {
	if f.zone != nil && f.zone.Contains(fqdn) {
		return f.zone, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeBackend) ListRules(_ context.Context, zone, protocol string) ([]models.Rule, error) {
	var out []models.Rule
	for _, r := range f.rules {
		if r.Zone == zone && strings.EqualFold(r.NetworkProtocol, protocol) {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeBackend) GetRule(context.Context, string) (*models.Rule, error) {
	return nil, storage.ErrNotFound
}
func (f *fakeBackend) CreateRule(context.Context, *models.Rule) error { return nil }
func (f *fakeBackend) DeleteRule(context.Context, string) error       { return nil }
func (f *fakeBackend) AddRuleComponent(context.Context, string, *models.RuleComponent) error {
	return nil
}
func (f *fakeBackend) DeleteRuleComponent(context.Context, string, string) error { return nil }
func (f *fakeBackend) SetRulePriority(context.Context, string, int) error        { return nil }

func (f *fakeBackend) InsertInteraction(_ context.Context, e *models.Interaction) error {
	f.interactions = append(f.interactions, e)
	return nil
}
func (f *fakeBackend) QueryInteractions(context.Context, storage.InteractionFilter) ([]*models.Interaction, error) {
	return nil, nil
}
func (f *fakeBackend) GetInteraction(context.Context, string, int64) (*models.Interaction, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeBackend) Ping(context.Context) error { return nil }
func (f *fakeBackend) Close()                     {}

func newTestSession(store *fakeBackend) *session {
	srv := NewServer(store, listener.NewRecorder(store), Config{Hostname: "test"})
	return &session{server: srv, remote: "203.0.113.9:42424"}
}

func dataReply(t *testing.T, err error) *smtp.SMTPError {
	t.Helper()
	var serr *smtp.SMTPError
	if !errors.As(err, &serr) {
		t.Fatalf("expected an SMTP reply from Data, got %v", err)
	}
	return serr
}

func TestDataTransmitsShapedSuccessMessage(t *testing.T) {
	store := &fakeBackend{
		zone: &models.Zone{FQDN: "test.example.net", Domain: "example.net", Owner: "alice"},
		rules: []models.Rule{{
			RuleID:          "r1",
			Zone:            "test.example.net",
			Name:            "greeting",
			NetworkProtocol: "SMTP",
			Components: []models.RuleComponent{
				{ComponentID: "c1", ActionName: "smtp.response.message", ActionValue: "Greetings from the mailroom"},
			},
		}},
	}
	s := newTestSession(store)
	s.mailFrom = "probe@attacker.net"
	s.rcptTos = []string{"inbox@test.example.net"}

	// A shaped message with the code left at 250 must still reach the
	// wire instead of go-smtp's canned reply.
	serr := dataReply(t, s.Data(strings.NewReader("hello")))
	if serr.Code != 250 || serr.Message != "Greetings from the mailroom" {
		t.Errorf("expected 250 with the shaped message, got %d %q", serr.Code, serr.Message)
	}

	if len(store.interactions) != 1 {
		t.Fatalf("expected 1 recorded interaction, got %d", len(store.interactions))
	}
	if got := store.interactions[0].RespSummary; got != "250 Greetings from the mailroom" {
		t.Errorf("recorded reply should match the transmitted one, got %q", got)
	}
}

func TestDataAnswersDefaultWithoutRules(t *testing.T) {
	store := &fakeBackend{
		zone: &models.Zone{FQDN: "test.example.net", Domain: "example.net", Owner: "alice"},
	}
	s := newTestSession(store)
	s.mailFrom = "probe@attacker.net"
	s.rcptTos = []string{"inbox@test.example.net"}

	serr := dataReply(t, s.Data(strings.NewReader("hello")))
	if serr.Code != 250 || serr.Message != "OK" {
		t.Errorf("expected the default 250 OK, got %d %q", serr.Code, serr.Message)
	}
}

func TestDataShapedRejection(t *testing.T) {
	store := &fakeBackend{
		zone: &models.Zone{FQDN: "test.example.net", Domain: "example.net", Owner: "alice"},
		rules: []models.Rule{{
			RuleID:          "r1",
			Zone:            "test.example.net",
			Name:            "deny admin",
			NetworkProtocol: "SMTP",
			Components: []models.RuleComponent{
				{ComponentID: "c1", IsPredicate: true, ActionName: "smtp.to", ActionValue: "^admin@"},
				{ComponentID: "c2", ActionName: "smtp.response.code", ActionValue: "550"},
				{ComponentID: "c3", ActionName: "smtp.response.message", ActionValue: "Relay denied"},
			},
		}},
	}
	s := newTestSession(store)
	s.mailFrom = "probe@attacker.net"
	s.rcptTos = []string{"admin@test.example.net"}

	serr := dataReply(t, s.Data(strings.NewReader("hello")))
	if serr.Code != 550 || serr.Message != "Relay denied" {
		t.Errorf("expected 550 Relay denied, got %d %q", serr.Code, serr.Message)
	}
}
