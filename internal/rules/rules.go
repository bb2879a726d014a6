package rules

// Request is the protocol-neutral view of one inbound interaction. Every
// listener adapts its native request into this before invoking the engine.
type Request interface {
	// FQDN is the fully qualified name the client addressed.
	FQDN() string
	// Zone is the FQDN of the owning zone.
	Zone() string
	// Protocol is the listener's protocol tag, e.g. "DNS" or "SMTP".
	Protocol() string
	// RemoteAddr is the client address.
	RemoteAddr() string
	// Summary is a short human-readable description for the interaction log.
	Summary() string
	// JSON is the protocol-specific payload for the interaction log.
	JSON() []byte
	// DefaultResponse is the response returned when no rule matches.
	DefaultResponse() Response
}

// Response is the protocol-neutral view of the answer sent on the wire.
type Response interface {
	Summary() string
	JSON() []byte
}

// Predicate decides whether a request satisfies one rule condition.
// Implementations must be stateless; they are called concurrently.
type Predicate interface {
	Matches(req Request, parameter string) bool
}

// Result applies one response-shaping action. The (possibly mutated)
// response state is threaded through each call as an explicit value.
type Result interface {
	Apply(resp Response, parameter string) Response
}

// PredicateFunc adapts a function to the Predicate interface.
type PredicateFunc func(req Request, parameter string) bool

func (f PredicateFunc) Matches(req Request, parameter string) bool { return f(req, parameter) }

// ResultFunc adapts a function to the Result interface.
type ResultFunc func(resp Response, parameter string) Response

func (f ResultFunc) Apply(resp Response, parameter string) Response { return f(resp, parameter) }

// Registry maps rule-component action names to their implementations for
// one protocol. It is built once at startup and read-only afterwards.
type Registry struct {
	predicates map[string]Predicate
	results    map[string]Result
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		predicates: map[string]Predicate{},
		results:    map[string]Result{},
	}
}

// RegisterPredicate binds an action name to a predicate implementation.
func (r *Registry) RegisterPredicate(name string, p Predicate) *Registry {
	r.predicates[name] = p
	return r
}

// RegisterResult binds an action name to a result implementation.
func (r *Registry) RegisterResult(name string, res Result) *Registry {
	r.results[name] = res
	return r
}

// Predicate looks up a predicate implementation by action name.
func (r *Registry) Predicate(name string) (Predicate, bool) {
	p, ok := r.predicates[name]
	return p, ok
}

// Result looks up a result implementation by action name.
func (r *Registry) Result(name string) (Result, bool) {
	res, ok := r.results[name]
	return res, ok
}
