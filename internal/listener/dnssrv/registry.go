package dnssrv

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/org/dusseldorf/internal/rules"
)

// Registry returns the DNS rule vocabulary.
//
// Predicates: "dns.type" (query type regex), "dns.name" (queried name
// regex). Results: "dns.response.data", "dns.response.type",
// "dns.response.ttl", "dns.response.code". Regexes are case-insensitive
// and an empty parameter always matches, mirroring the SMTP vocabulary.
func Registry() *rules.Registry {
	return rules.NewRegistry().
		RegisterPredicate("dns.type", rules.PredicateFunc(matchQType)).
		RegisterPredicate("dns.name", rules.PredicateFunc(matchName)).
		RegisterResult("dns.response.data", rules.ResultFunc(setData)).
		RegisterResult("dns.response.type", rules.ResultFunc(setType)).
		RegisterResult("dns.response.ttl", rules.ResultFunc(setTTL)).
		RegisterResult("dns.response.code", rules.ResultFunc(setRcode))
}

func matchQType(req rules.Request, param string) bool {
	r, ok := req.(*Request)
	if !ok {
		return false
	}
	return regexMatches(param, r.QType)
}

func matchName(req rules.Request, param string) bool {
	r, ok := req.(*Request)
	if !ok {
		return false
	}
	return regexMatches(param, r.Name)
}

// regexMatches runs a case-insensitive search. An empty pattern always
// matches; an invalid one never does.
func regexMatches(pattern, s string) bool {
	if pattern == "" {
		return true
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func setData(resp rules.Response, param string) rules.Response {
	r, ok := resp.(*Response)
	if !ok {
		return resp
	}
	r.Data = param
	return r
}

func setType(resp rules.Response, param string) rules.Response {
	r, ok := resp.(*Response)
	if !ok {
		return resp
	}
	if param != "" {
		r.RType = strings.ToUpper(param)
	}
	return r
}

func setTTL(resp rules.Response, param string) rules.Response {
	r, ok := resp.(*Response)
	if !ok {
		return resp
	}
	// Invalid parameter keeps the current TTL.
	if ttl, err := strconv.ParseUint(param, 10, 32); err == nil {
		r.TTL = uint32(ttl)
	}
	return r
}

func setRcode(resp rules.Response, param string) rules.Response {
	r, ok := resp.(*Response)
	if !ok {
		return resp
	}
	if param != "" {
		r.Rcode = strings.ToUpper(param)
	}
	return r
}
