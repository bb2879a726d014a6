package smtpsrv

import (
	"encoding/json"
	"fmt"

	"github.com/org/dusseldorf/internal/rules"
)

// Request is the protocol-neutral view of one received mail transaction.
type Request struct {
	ReqFQDN  string
	ZoneFQDN string
	Remote   string
	MailFrom string
	RcptTos  []string
	Data     string
}

func (r *Request) FQDN() string       { return r.ReqFQDN }
func (r *Request) Zone() string       { return r.ZoneFQDN }
func (r *Request) Protocol() string   { return "SMTP" }
func (r *Request) RemoteAddr() string { return r.Remote }

func (r *Request) Summary() string {
	to := "none"
	if len(r.RcptTos) > 0 {
		to = r.RcptTos[0]
	}
	return fmt.Sprintf("SMTP FROM:%s TO:%s", r.MailFrom, to)
}

func (r *Request) JSON() []byte {
	b, _ := json.Marshal(map[string]any{ //nolint:errcheck
		"mail_from": r.MailFrom,
		"rcpt_tos":  r.RcptTos,
		"data":      r.Data,
	})
	return b
}

// DefaultResponse is "250 OK": deceptive mail endpoints accept by default.
func (r *Request) DefaultResponse() rules.Response {
	return &Response{Code: 250, Message: "OK"}
}

// Response is the rule-shaped SMTP reply for the end of a transaction.
type Response struct {
	Code    int
	Message string
}

func (r *Response) Summary() string {
	return fmt.Sprintf("%d %s", r.Code, r.Message)
}

func (r *Response) JSON() []byte {
	b, _ := json.Marshal(map[string]any{ //nolint:errcheck
		"code":    r.Code,
		"message": r.Message,
	})
	return b
}
