package storage

import (
	"context"
	"errors"

	"github.com/org/dusseldorf/pkg/models"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when trying to create a resource that already exists.
var ErrAlreadyExists = errors.New("already exists")

// InteractionFilter specifies query parameters for interaction log retrieval.
// Results are always zone-scoped and sorted newest-first.
type InteractionFilter struct {
	Zone      string
	Protocols []string
	Skip      int
	Limit     int
}

// Backend defines the persistence interface for the platform.
type Backend interface {
	// Users
	GetUser(ctx context.Context, username string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, username string) error
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Sessions
	InsertSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteUserSessions(ctx context.Context, username string) error

	// Domains
	ListDomains(ctx context.Context) ([]*models.Domain, error)
	GetDomain(ctx context.Context, name string) (*models.Domain, error)
	UpsertDomain(ctx context.Context, domain *models.Domain) error

	// Zones
	CreateZone(ctx context.Context, zone *models.Zone) error
	GetZone(ctx context.Context, fqdn string) (*models.Zone, error)
	ListZones(ctx context.Context) ([]*models.Zone, error)
	DeleteZone(ctx context.Context, fqdn string) error
	SetZoneAuthz(ctx context.Context, fqdn, alias string, level models.Permission) error
	RemoveZoneAuthz(ctx context.Context, fqdn, alias string) error
	// FindZoneForFQDN resolves the owning zone for a requested name by
	// longest-suffix match, skipping expired zones.
	FindZoneForFQDN(ctx context.Context, fqdn string) (*models.Zone, error)

	// Rules. Mutations are atomic per rule: the engine may read a rule
	// set concurrently with these, but never sees a half-written rule.
	ListRules(ctx context.Context, zone, protocol string) ([]models.Rule, error)
	GetRule(ctx context.Context, ruleID string) (*models.Rule, error)
	CreateRule(ctx context.Context, rule *models.Rule) error
	DeleteRule(ctx context.Context, ruleID string) error
	AddRuleComponent(ctx context.Context, ruleID string, c *models.RuleComponent) error
	DeleteRuleComponent(ctx context.Context, ruleID, componentID string) error
	SetRulePriority(ctx context.Context, ruleID string, priority int) error

	// Interaction log (append-only)
	InsertInteraction(ctx context.Context, entry *models.Interaction) error
	QueryInteractions(ctx context.Context, filter InteractionFilter) ([]*models.Interaction, error)
	GetInteraction(ctx context.Context, zone string, ts int64) (*models.Interaction, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close()
}
