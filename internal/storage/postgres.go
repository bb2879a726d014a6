package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/org/dusseldorf/pkg/models"
)

// PostgresBackend is a Backend backed by PostgreSQL.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend opens a pgxpool connection and returns a ready backend.
func NewPostgresBackend(ctx context.Context, connStr string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresBackend) Close() {
	p.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Users ---

func (p *PostgresBackend) GetUser(ctx context.Context, username string) (*models.User, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT username, email, full_name, roles, password_hash, created_at
		 FROM users WHERE username = $1`,
		username,
	)
	var u models.User
	err := row.Scan(&u.Username, &u.Email, &u.FullName, &u.Roles, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (p *PostgresBackend) UpsertUser(ctx context.Context, u *models.User) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (username, email, full_name, roles, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (username) DO UPDATE
		 SET email = EXCLUDED.email,
		     full_name = EXCLUDED.full_name,
		     roles = EXCLUDED.roles,
		     password_hash = EXCLUDED.password_hash`,
		u.Username, u.Email, u.FullName, u.Roles, u.PasswordHash,
	)
	return err
}

// DeleteUser removes the user record and then, best effort, the user's
// sessions. A crash between the two steps leaves orphaned sessions;
// session validation re-checks user existence, so they are inert.
func (p *PostgresBackend) DeleteUser(ctx context.Context, username string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return p.DeleteUserSessions(ctx, username)
}

func (p *PostgresBackend) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT username, email, full_name, roles, password_hash, created_at
		 FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.Username, &u.Email, &u.FullName, &u.Roles, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// --- Sessions ---

func (p *PostgresBackend) InsertSession(ctx context.Context, s *models.Session) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO sessions (token_hash, username, email, full_name, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.TokenHash, s.Username, s.Email, s.FullName, s.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (p *PostgresBackend) GetSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT token_hash, username, email, full_name, expires_at
		 FROM sessions WHERE token_hash = $1`,
		tokenHash,
	)
	var s models.Session
	err := row.Scan(&s.TokenHash, &s.Username, &s.Email, &s.FullName, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// DeleteSession is idempotent: deleting an already-gone session is not an error.
func (p *PostgresBackend) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return err
}

func (p *PostgresBackend) DeleteUserSessions(ctx context.Context, username string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE username = $1`, username)
	return err
}

// --- Domains ---

func (p *PostgresBackend) ListDomains(ctx context.Context) ([]*models.Domain, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT domain, public_ips, owner FROM domains ORDER BY domain`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var domains []*models.Domain
	for rows.Next() {
		var d models.Domain
		if err := rows.Scan(&d.Domain, &d.PublicIPs, &d.Owner); err != nil {
			return nil, err
		}
		domains = append(domains, &d)
	}
	return domains, rows.Err()
}

func (p *PostgresBackend) GetDomain(ctx context.Context, name string) (*models.Domain, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT domain, public_ips, owner FROM domains WHERE domain = $1`,
		name,
	)
	var d models.Domain
	err := row.Scan(&d.Domain, &d.PublicIPs, &d.Owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (p *PostgresBackend) UpsertDomain(ctx context.Context, d *models.Domain) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO domains (domain, public_ips, owner)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (domain) DO UPDATE
		 SET public_ips = EXCLUDED.public_ips, owner = EXCLUDED.owner`,
		d.Domain, d.PublicIPs, d.Owner,
	)
	return err
}

// --- Zones ---

func (p *PostgresBackend) CreateZone(ctx context.Context, z *models.Zone) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO zones (fqdn, domain, owner, expiry) VALUES ($1, $2, $3, $4)`,
		z.FQDN, z.Domain, z.Owner, z.Expiry,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (p *PostgresBackend) GetZone(ctx context.Context, fqdn string) (*models.Zone, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT fqdn, domain, owner, expiry FROM zones WHERE fqdn = $1`,
		fqdn,
	)
	z, err := scanZone(row)
	if err != nil {
		return nil, err
	}
	if err := p.loadZoneAuthz(ctx, z); err != nil {
		return nil, err
	}
	return z, nil
}

func scanZone(row pgx.Row) (*models.Zone, error) {
	var z models.Zone
	err := row.Scan(&z.FQDN, &z.Domain, &z.Owner, &z.Expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &z, nil
}

func (p *PostgresBackend) loadZoneAuthz(ctx context.Context, z *models.Zone) error {
	rows, err := p.pool.Query(ctx,
		`SELECT alias, authzlevel FROM zone_authz WHERE zone_fqdn = $1 ORDER BY alias`,
		z.FQDN,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e models.AuthzEntry
		if err := rows.Scan(&e.Alias, &e.Level); err != nil {
			return err
		}
		z.Authz = append(z.Authz, e)
	}
	return rows.Err()
}

func (p *PostgresBackend) ListZones(ctx context.Context) ([]*models.Zone, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT fqdn, domain, owner, expiry FROM zones ORDER BY fqdn`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var zones []*models.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, z := range zones {
		if err := p.loadZoneAuthz(ctx, z); err != nil {
			return nil, err
		}
	}
	return zones, nil
}

func (p *PostgresBackend) DeleteZone(ctx context.Context, fqdn string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM zones WHERE fqdn = $1`, fqdn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresBackend) SetZoneAuthz(ctx context.Context, fqdn, alias string, level models.Permission) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO zone_authz (zone_fqdn, alias, authzlevel)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (zone_fqdn, alias) DO UPDATE SET authzlevel = EXCLUDED.authzlevel`,
		fqdn, alias, int(level),
	)
	return err
}

func (p *PostgresBackend) RemoveZoneAuthz(ctx context.Context, fqdn, alias string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM zone_authz WHERE zone_fqdn = $1 AND alias = $2`,
		fqdn, alias,
	)
	return err
}

func (p *PostgresBackend) FindZoneForFQDN(ctx context.Context, fqdn string) (*models.Zone, error) {
	fqdn = strings.ToLower(strings.TrimSuffix(fqdn, "."))
	row := p.pool.QueryRow(ctx,
		`SELECT fqdn, domain, owner, expiry FROM zones
		 WHERE ($1 = fqdn OR $1 LIKE '%.' || fqdn)
		   AND (expiry IS NULL OR expiry > NOW())
		 ORDER BY length(fqdn) DESC
		 LIMIT 1`,
		fqdn,
	)
	return scanZone(row)
}

// --- Rules ---

func (p *PostgresBackend) ListRules(ctx context.Context, zone, protocol string) ([]models.Rule, error) {
	query := `SELECT ruleid, zone, name, networkprotocol, priority FROM rules WHERE zone = $1`
	args := []any{zone}
	if protocol != "" {
		query += ` AND UPPER(networkprotocol) = UPPER($2)`
		args = append(args, protocol)
	}
	query += ` ORDER BY priority, ruleid`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		var r models.Rule
		if err := rows.Scan(&r.RuleID, &r.Zone, &r.Name, &r.NetworkProtocol, &r.Priority); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := p.loadRuleComponents(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *PostgresBackend) loadRuleComponents(ctx context.Context, r *models.Rule) error {
	rows, err := p.pool.Query(ctx,
		`SELECT componentid, ispredicate, actionname, actionvalue
		 FROM rule_components WHERE ruleid = $1 ORDER BY seq`,
		r.RuleID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c models.RuleComponent
		if err := rows.Scan(&c.ComponentID, &c.IsPredicate, &c.ActionName, &c.ActionValue); err != nil {
			return err
		}
		r.Components = append(r.Components, c)
	}
	return rows.Err()
}

func (p *PostgresBackend) GetRule(ctx context.Context, ruleID string) (*models.Rule, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT ruleid, zone, name, networkprotocol, priority FROM rules WHERE ruleid = $1`,
		ruleID,
	)
	var r models.Rule
	err := row.Scan(&r.RuleID, &r.Zone, &r.Name, &r.NetworkProtocol, &r.Priority)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := p.loadRuleComponents(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRule inserts the rule and its components in one transaction so a
// concurrent engine read never observes a partially written rule.
func (p *PostgresBackend) CreateRule(ctx context.Context, r *models.Rule) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO rules (ruleid, zone, name, networkprotocol, priority)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.RuleID, r.Zone, r.Name, r.NetworkProtocol, r.Priority,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting rule: %w", err)
	}
	for _, c := range r.Components {
		_, err = tx.Exec(ctx,
			`INSERT INTO rule_components (componentid, ruleid, ispredicate, actionname, actionvalue)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.ComponentID, r.RuleID, c.IsPredicate, c.ActionName, c.ActionValue,
		)
		if err != nil {
			return fmt.Errorf("inserting rule component: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (p *PostgresBackend) DeleteRule(ctx context.Context, ruleID string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM rules WHERE ruleid = $1`, ruleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresBackend) AddRuleComponent(ctx context.Context, ruleID string, c *models.RuleComponent) error {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO rule_components (componentid, ruleid, ispredicate, actionname, actionvalue)
		 SELECT $1, ruleid, $3, $4, $5 FROM rules WHERE ruleid = $2`,
		c.ComponentID, ruleID, c.IsPredicate, c.ActionName, c.ActionValue,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresBackend) DeleteRuleComponent(ctx context.Context, ruleID, componentID string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM rule_components WHERE ruleid = $1 AND componentid = $2`,
		ruleID, componentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresBackend) SetRulePriority(ctx context.Context, ruleID string, priority int) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE rules SET priority = $1 WHERE ruleid = $2`,
		priority, ruleID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Interaction log ---

func (p *PostgresBackend) InsertInteraction(ctx context.Context, e *models.Interaction) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO requests (zone, time, fqdn, protocol, clientip, request, response, reqsummary, respsummary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.Zone, e.Time, e.FQDN, e.Protocol, e.ClientIP, e.Request, e.Response, e.ReqSummary, e.RespSummary,
	)
	return err
}

func (p *PostgresBackend) QueryInteractions(ctx context.Context, filter InteractionFilter) ([]*models.Interaction, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT zone, time, fqdn, protocol, clientip, request, response, reqsummary, respsummary
		 FROM requests WHERE zone = $1`)
	args := []any{filter.Zone}
	n := 2
	if len(filter.Protocols) > 0 {
		fmt.Fprintf(&query, ` AND protocol = ANY($%d)`, n)
		args = append(args, filter.Protocols)
		n++
	}
	query.WriteString(` ORDER BY time DESC`)
	if filter.Limit > 0 {
		fmt.Fprintf(&query, ` LIMIT $%d`, n)
		args = append(args, filter.Limit)
		n++
	}
	if filter.Skip > 0 {
		fmt.Fprintf(&query, ` OFFSET $%d`, n)
		args = append(args, filter.Skip)
	}

	rows, err := p.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.Interaction
	for rows.Next() {
		e, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *PostgresBackend) GetInteraction(ctx context.Context, zone string, ts int64) (*models.Interaction, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT zone, time, fqdn, protocol, clientip, request, response, reqsummary, respsummary
		 FROM requests WHERE zone = $1 AND time = $2`,
		zone, ts,
	)
	return scanInteraction(row)
}

func scanInteraction(row pgx.Row) (*models.Interaction, error) {
	var e models.Interaction
	err := row.Scan(&e.Zone, &e.Time, &e.FQDN, &e.Protocol, &e.ClientIP,
		&e.Request, &e.Response, &e.ReqSummary, &e.RespSummary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}
