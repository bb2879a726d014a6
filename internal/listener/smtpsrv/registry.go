package smtpsrv

import (
	"regexp"
	"strconv"

	"github.com/org/dusseldorf/internal/rules"
)

// Registry returns the SMTP rule vocabulary.
//
// Predicates: "smtp.from" (MAIL FROM regex), "smtp.to" (matches when any
// RCPT TO matches), "smtp.data.contains" (body regex, dot matches
// newlines). Results: "smtp.response.code", "smtp.response.message".
func Registry() *rules.Registry {
	return rules.NewRegistry().
		RegisterPredicate("smtp.from", rules.PredicateFunc(matchFrom)).
		RegisterPredicate("smtp.to", rules.PredicateFunc(matchTo)).
		RegisterPredicate("smtp.data.contains", rules.PredicateFunc(matchData)).
		RegisterResult("smtp.response.code", rules.ResultFunc(setCode)).
		RegisterResult("smtp.response.message", rules.ResultFunc(setMessage))
}

func matchFrom(req rules.Request, param string) bool {
	r, ok := req.(*Request)
	if !ok {
		return false
	}
	if param == "" {
		return true
	}
	re, err := regexp.Compile("(?i)" + param)
	if err != nil {
		return false
	}
	return re.MatchString(r.MailFrom)
}

func matchTo(req rules.Request, param string) bool {
	r, ok := req.(*Request)
	if !ok {
		return false
	}
	if param == "" {
		return true
	}
	re, err := regexp.Compile("(?i)" + param)
	if err != nil {
		return false
	}
	for _, rcpt := range r.RcptTos {
		if re.MatchString(rcpt) {
			return true
		}
	}
	return false
}

func matchData(req rules.Request, param string) bool {
	r, ok := req.(*Request)
	if !ok {
		return false
	}
	if param == "" {
		return true
	}
	re, err := regexp.Compile("(?is)" + param)
	if err != nil {
		return false
	}
	return re.MatchString(r.Data)
}

// setCode sets the reply code. An unparseable parameter keeps the
// current code.
func setCode(resp rules.Response, param string) rules.Response {
	r, ok := resp.(*Response)
	if !ok {
		return resp
	}
	if code, err := strconv.Atoi(param); err == nil {
		r.Code = code
	}
	return r
}

func setMessage(resp rules.Response, param string) rules.Response {
	r, ok := resp.(*Response)
	if !ok {
		return resp
	}
	r.Message = param
	return r
}
