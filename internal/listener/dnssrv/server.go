// Package dnssrv runs the DNS deception listener.
package dnssrv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/org/dusseldorf/internal/listener"
	"github.com/org/dusseldorf/internal/rules"
	"github.com/org/dusseldorf/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Server answers DNS queries for managed zones by running the rule
// engine over the owning zone's rule set.
type Server struct {
	store    storage.Backend
	recorder *listener.Recorder
	registry *rules.Registry
	addr     string
}

// NewServer creates a DNS Server listening on addr (host:port).
func NewServer(store storage.Backend, recorder *listener.Recorder, addr string) *Server {
	return &Server{
		store:    store,
		recorder: recorder,
		registry: Registry(),
		addr:     addr,
	}
}

// Run serves DNS over both udp and tcp until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	handler := dns.HandlerFunc(s.handle)

	g, ctx := errgroup.WithContext(ctx)
	for _, network := range []string{"udp", "tcp"} {
		network := network
		g.Go(func() error {
			srv, errCh := runDNSServer(s.addr, network, handler)
			defer srv.Shutdown() //nolint:errcheck
			log.Info().Str("addr", s.addr).Str("net", network).Msg("DNS listener started")
			select {
			case <-ctx.Done():
				return nil
			case err := <-errCh:
				return err
			}
		})
	}
	return g.Wait()
}

// handle maps one query to a response. Every query gets an answer:
// names outside any managed zone are refused, everything else goes
// through the rule engine and falls back to the protocol default.
func (s *Server) handle(w dns.ResponseWriter, m *dns.Msg) {
	listener.RequestsTotal.WithLabelValues("DNS").Inc()
	if len(m.Question) == 0 {
		refuse(w, m)
		return
	}
	q := m.Question[0]
	name := canonicalName(q.Name)
	qtype := dns.TypeToString[q.Qtype]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zone, err := s.store.FindZoneForFQDN(ctx, name)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Error().Err(err).Str("name", name).Msg("zone lookup failed")
		}
		refuse(w, m)
		return
	}

	req := &Request{
		Name:       name,
		QType:      qtype,
		ZoneFQDN:   zone.FQDN,
		Remote:     w.RemoteAddr().String(),
		DefaultIPs: s.domainIPs(ctx, zone.Domain),
	}

	// Storage trouble on the rule read degrades to the default
	// response; the client still gets an answer.
	zoneRules, err := s.store.ListRules(ctx, zone.FQDN, "DNS")
	if err != nil {
		log.Error().Err(err).Str("zone", zone.FQDN).Msg("rule fetch failed, answering with default")
		zoneRules = nil
	}
	resp := rules.Evaluate(req, zoneRules, s.registry)

	answer := buildAnswer(m, req, resp)
	if err := w.WriteMsg(answer); err != nil {
		log.Error().Err(err).Msg("failed to write DNS response")
	}
	s.recorder.Save(ctx, req, resp)
}

func (s *Server) domainIPs(ctx context.Context, domain string) []string {
	d, err := s.store.GetDomain(ctx, domain)
	if err != nil {
		return nil
	}
	return d.PublicIPs
}

// buildAnswer turns the engine's response into a wire message.
func buildAnswer(m *dns.Msg, req *Request, resp rules.Response) *dns.Msg {
	answer := new(dns.Msg)
	answer.SetReply(m)
	answer.Authoritative = true

	dresp, ok := resp.(*Response)
	if !ok {
		answer.SetRcode(m, dns.RcodeServerFailure)
		return answer
	}
	if rcode, ok := dns.StringToRcode[dresp.Rcode]; ok && rcode != dns.RcodeSuccess {
		answer.SetRcode(m, rcode)
		return answer
	}
	if dresp.Data == "" {
		// Nothing to answer with; NOERROR with an empty answer section.
		return answer
	}
	rr, err := dns.NewRR(fmt.Sprintf("%s %d IN %s %s", dns.Fqdn(req.Name), dresp.TTL, dresp.RType, dresp.Data))
	if err != nil {
		log.Warn().Err(err).
			Str("type", dresp.RType).
			Str("data", dresp.Data).
			Msg("rule produced an unparseable record, answering empty")
		return answer
	}
	answer.Answer = append(answer.Answer, rr)
	return answer
}

func refuse(w dns.ResponseWriter, m *dns.Msg) {
	answer := new(dns.Msg)
	answer.SetRcode(m, dns.RcodeRefused)
	if err := w.WriteMsg(answer); err != nil {
		log.Error().Err(err).Msg("failed to write DNS refusal")
	}
}

func canonicalName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

// runDNSServer starts a DNS server for the given address and network and
// ensures it is listening before returning. Errors are reported on the
// returned channel; the caller owns Shutdown.
func runDNSServer(addr, network string, handler dns.Handler) (*dns.Server, <-chan error) {
	srv := &dns.Server{
		Addr:    addr,
		Net:     network,
		Handler: handler,
	}

	waitLock := sync.Mutex{}
	waitLock.Lock()
	srv.NotifyStartedFunc = waitLock.Unlock

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil {
			waitLock.Unlock()
			errCh <- err
		}
	}()
	waitLock.Lock()
	return srv, errCh
}
