package registry

// Option configures a Registry.
type Option func(*Registry)

// WithPolicy sets the unknown-entity policy.
func WithPolicy(p Policy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}
