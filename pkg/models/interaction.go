package models

import "encoding/json"

// Interaction is one persisted request/response pair observed by a
// listener. Entries are append-only and never mutated.
type Interaction struct {
	Zone        string          `json:"zone"`
	Time        int64           `json:"time"` // unix milliseconds
	FQDN        string          `json:"fqdn"`
	Protocol    string          `json:"protocol"`
	ClientIP    string          `json:"clientip"`
	Request     json.RawMessage `json:"request"`
	Response    json.RawMessage `json:"response"`
	ReqSummary  string          `json:"reqsummary"`
	RespSummary string          `json:"respsummary"`
}
