package passwordless

import "context"

// Options is the option bag of a login request, typically a decoded JSON object.
type Options map[string]any

// Strategy is a login method: a predicate selecting the requests it owns
// and the handler running them.
type Strategy struct {
	// Name identifies the strategy in logs.
	Name string

	// Applies tells if the request targets this strategy.
	Applies func(opts Options) bool

	// Login handles a request Applies returned true for. Must not return nil.
	Login func(ctx context.Context, opts Options) *LoginResult
}

// Registry holds login strategies in priority order.
// It performs no auth logic itself.
type Registry struct {
	strategies []Strategy
}

// NewRegistry registers the given strategies; earlier ones win.
func NewRegistry(list ...Strategy) *Registry {
	return &Registry{strategies: list}
}

// Dispatch runs the first strategy that applies to opts.
// ok is false if no strategy claims the request (NotApplicable).
func (r *Registry) Dispatch(ctx context.Context, opts Options) (res *LoginResult, strategy string, ok bool) {
	for _, s := range r.strategies {
		if s.Applies(opts) {
			return s.Login(ctx, opts), s.Name, true
		}
	}
	return nil, "", false
}
