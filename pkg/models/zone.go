package models

import (
	"strings"
	"time"
)

// SharedOwner is the reserved owner identifier for zones and domains that
// every authenticated user may claim Owner-level access on.
const SharedOwner = "dusseldorf"

// Domain is a registered parent domain that zones are carved out of.
type Domain struct {
	Domain    string   `json:"domain"`
	PublicIPs []string `json:"public_ips"`
	Owner     string   `json:"owner"`
}

// Zone is a managed FQDN under deception. A zone's rules are only ever
// evaluated in the context of that zone.
type Zone struct {
	FQDN   string       `json:"fqdn"`
	Domain string       `json:"domain"`
	Owner  string       `json:"owner"`
	Expiry *time.Time   `json:"expiry,omitempty"`
	Authz  []AuthzEntry `json:"authz"`
}

// IsExpired reports whether the zone has an expiry in the past.
func (z *Zone) IsExpired() bool {
	return z.Expiry != nil && time.Now().After(*z.Expiry)
}

// Contains reports whether fqdn is the zone itself or a subdomain of it.
func (z *Zone) Contains(fqdn string) bool {
	fqdn = strings.ToLower(strings.TrimSuffix(fqdn, "."))
	return fqdn == z.FQDN || strings.HasSuffix(fqdn, "."+z.FQDN)
}
