package middleware

// Registry is the ordered action middleware of a runtime. Each entry is
// named so the installed chain can be reported.
type Registry struct {
	names []string
	chain []Middleware
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Use appends m under name. Earlier entries wrap later ones.
func (r *Registry) Use(name string, m Middleware) *Registry {
	r.names = append(r.names, name)
	r.chain = append(r.chain, m)
	return r
}

// Names returns the entry names outermost first.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.chain)
}

// Chain composes the entries, or returns Noop for an empty registry.
func (r *Registry) Chain() Middleware {
	if len(r.chain) == 0 {
		return Noop()
	}
	return Chain(r.chain...)
}
