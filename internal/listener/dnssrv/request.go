package dnssrv

import (
	"encoding/json"
	"fmt"

	"github.com/org/dusseldorf/internal/rules"
)

// Request is the protocol-neutral view of one DNS query.
type Request struct {
	Name       string // queried name, lowercase, no trailing dot
	QType      string // query type mnemonic, e.g. "A", "TXT"
	ZoneFQDN   string
	Remote     string
	DefaultIPs []string // owning domain's public IPs, used for the default answer
}

func (r *Request) FQDN() string       { return r.Name }
func (r *Request) Zone() string       { return r.ZoneFQDN }
func (r *Request) Protocol() string   { return "DNS" }
func (r *Request) RemoteAddr() string { return r.Remote }

func (r *Request) Summary() string {
	return fmt.Sprintf("DNS %s %s", r.QType, r.Name)
}

func (r *Request) JSON() []byte {
	b, _ := json.Marshal(map[string]any{ //nolint:errcheck
		"name": r.Name,
		"type": r.QType,
	})
	return b
}

// DefaultResponse answers with an A record pointing at the owning
// domain's first public IP. Zones always resolve somewhere, so blind
// probes get a live-looking answer even without rules.
func (r *Request) DefaultResponse() rules.Response {
	data := ""
	if len(r.DefaultIPs) > 0 {
		data = r.DefaultIPs[0]
	}
	return &Response{RType: "A", Data: data, TTL: defaultTTL, Rcode: "NOERROR"}
}

const defaultTTL = 60

// Response is the rule-shaped answer for one DNS query.
type Response struct {
	RType string // answer record type
	Data  string // record content
	TTL   uint32
	Rcode string // response code mnemonic, e.g. "NOERROR", "NXDOMAIN"
}

func (r *Response) Summary() string {
	if r.Rcode != "NOERROR" {
		return r.Rcode
	}
	return fmt.Sprintf("%s %s (ttl %d)", r.RType, r.Data, r.TTL)
}

func (r *Response) JSON() []byte {
	b, _ := json.Marshal(map[string]any{ //nolint:errcheck
		"type": r.RType,
		"data": r.Data,
		"ttl":  r.TTL,
		"code": r.Rcode,
	})
	return b
}
