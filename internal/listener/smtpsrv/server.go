// Package smtpsrv runs the SMTP deception listeners.
package smtpsrv

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/org/dusseldorf/internal/listener"
	"github.com/org/dusseldorf/internal/rules"
	"github.com/org/dusseldorf/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds the SMTP listener configuration.
type Config struct {
	Hostname       string // advertised in the greeting
	Addrs          []string // plaintext/STARTTLS listen addresses (ports 25, 587)
	TLSAddr        string // implicit-TLS listen address (port 465), requires cert
	TLSCertFile    string
	TLSKeyFile     string
	MaxMessageSize int64
}

// Server accepts mail for managed zones and shapes the end-of-data
// reply with the rule engine.
type Server struct {
	store    storage.Backend
	recorder *listener.Recorder
	registry *rules.Registry
	cfg      Config
}

// NewServer creates an SMTP Server.
func NewServer(store storage.Backend, recorder *listener.Recorder, cfg Config) *Server {
	return &Server{
		store:    store,
		recorder: recorder,
		registry: Registry(),
		cfg:      cfg,
	}
}

// Run serves on every configured address until ctx is cancelled. The
// implicit-TLS listener is skipped, with a log entry, when the
// certificate cannot be loaded.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, addr := range s.cfg.Addrs {
		srv := s.newSMTPServer(addr, nil)
		g.Go(func() error { return serve(ctx, srv, "smtp") })
	}

	if s.cfg.TLSAddr != "" {
		tlsCfg, err := s.loadTLS()
		if err != nil {
			log.Error().Err(err).Str("addr", s.cfg.TLSAddr).Msg("SMTPS disabled, certificate unavailable")
		} else {
			srv := s.newSMTPServer(s.cfg.TLSAddr, tlsCfg)
			g.Go(func() error { return serveTLS(ctx, srv) })
		}
	}

	return g.Wait()
}

func (s *Server) loadTLS() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading SMTPS key pair: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

func (s *Server) newSMTPServer(addr string, tlsCfg *tls.Config) *smtp.Server {
	srv := smtp.NewServer(&backend{server: s})
	srv.Addr = addr
	srv.Domain = s.cfg.Hostname
	srv.ReadTimeout = 60 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.MaxMessageBytes = s.cfg.MaxMessageSize
	srv.MaxRecipients = 50
	srv.TLSConfig = tlsCfg
	return srv
}

func serve(ctx context.Context, srv *smtp.Server, kind string) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()
	log.Info().Str("addr", srv.Addr).Str("kind", kind).Msg("SMTP listener started")
	if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func serveTLS(ctx context.Context, srv *smtp.Server) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()
	log.Info().Str("addr", srv.Addr).Str("kind", "smtps").Msg("SMTP listener started")
	if err := srv.ListenAndServeTLS(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// backend hands each connection its own session.
type backend struct {
	server *Server
}

func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remote := ""
	if conn := c.Conn(); conn != nil && conn.RemoteAddr() != nil {
		remote = conn.RemoteAddr().String()
	}
	return &session{server: b.server, remote: remote}, nil
}

// session tracks one mail transaction. Wire grammar and session
// sequencing belong to go-smtp; this only decides what to answer.
type session struct {
	server   *Server
	remote   string
	mailFrom string
	rcptTos  []string
}

func (s *session) Reset() {
	s.mailFrom = ""
	s.rcptTos = nil
}

func (s *session) Logout() error { return nil }

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.mailFrom = from
	return nil
}

// Rcpt accepts recipients whose domain resolves to a managed zone and
// denies relay for everything else.
func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	listener.RequestsTotal.WithLabelValues("SMTP").Inc()
	domain, err := recipientDomain(to)
	if err != nil {
		log.Warn().Str("rcpt", to).Msg("invalid RCPT TO address")
		return &smtp.SMTPError{Code: 501, EnhancedCode: smtp.EnhancedCode{5, 1, 3}, Message: "Invalid address"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	zone, err := s.server.store.FindZoneForFQDN(ctx, domain)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Error().Err(err).Str("domain", domain).Msg("zone lookup failed")
		}
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 7, 1}, Message: "Relay access denied"}
	}

	log.Debug().Str("rcpt", to).Str("zone", zone.FQDN).Msg("recipient accepted")
	s.rcptTos = append(s.rcptTos, to)
	return nil
}

// Data runs the rule engine over the completed transaction and answers
// with the shaped reply.
func (s *session) Data(r io.Reader) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return &smtp.SMTPError{Code: 451, EnhancedCode: smtp.EnhancedCode{4, 3, 0}, Message: "Failed to read message"}
	}
	if len(s.rcptTos) == 0 {
		return &smtp.SMTPError{Code: 554, EnhancedCode: smtp.EnhancedCode{5, 5, 1}, Message: "No valid recipients"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reqFQDN, _ := recipientDomain(s.rcptTos[0]) //nolint:errcheck
	zone, err := s.server.store.FindZoneForFQDN(ctx, reqFQDN)
	if err != nil {
		log.Error().Err(err).Str("fqdn", reqFQDN).Msg("could not resolve zone for transaction")
		return &smtp.SMTPError{Code: 451, EnhancedCode: smtp.EnhancedCode{4, 3, 0}, Message: "Requested action aborted"}
	}

	req := &Request{
		ReqFQDN:  reqFQDN,
		ZoneFQDN: zone.FQDN,
		Remote:   s.remote,
		MailFrom: s.mailFrom,
		RcptTos:  s.rcptTos,
		Data:     string(body),
	}

	zoneRules, err := s.server.store.ListRules(ctx, zone.FQDN, "SMTP")
	if err != nil {
		log.Error().Err(err).Str("zone", zone.FQDN).Msg("rule fetch failed, answering with default")
		zoneRules = nil
	}
	resp := rules.Evaluate(req, zoneRules, s.server.registry)
	s.server.recorder.Save(ctx, req, resp)

	sresp, ok := resp.(*Response)
	if !ok {
		return nil
	}
	// The shaped reply is returned for every code, 2xx included, so a
	// rule-set message replaces go-smtp's canned "250 2.0.0 OK".
	return &smtp.SMTPError{Code: sresp.Code, EnhancedCode: smtp.EnhancedCodeNotSet, Message: sresp.Message}
}

func recipientDomain(addr string) (string, error) {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return "", fmt.Errorf("address %q has no domain", addr)
	}
	return strings.ToLower(addr[at+1:]), nil
}
