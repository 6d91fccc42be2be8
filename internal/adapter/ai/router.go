package ai

import (
	"context"
	"fmt"
	"log/slog"
)

// Router resolves the configured provider name to a registered backend.
// Registration happens once at startup; resolution happens per review so
// a backend that comes up later (a restarted local model, say) is picked
// up without a redeploy.
type Router struct {
	configured string
	backends   map[string]Backend
	order      []string
	logger     *slog.Logger
}

// NewRouter creates a router for the configured provider name.
func NewRouter(configured string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		configured: configured,
		backends:   make(map[string]Backend),
		logger:     logger,
	}
}

// Register adds a backend. Registration order decides fallback priority.
func (r *Router) Register(b Backend) {
	name := b.ProviderName()
	if _, dup := r.backends[name]; !dup {
		r.order = append(r.order, name)
	}
	r.backends[name] = b
}

// Active returns the backend to use for the next review. A configured
// provider that was never registered is a configuration error and fails
// immediately; a registered-but-unready provider falls back to the first
// ready backend in registration order.
func (r *Router) Active(ctx context.Context) (Backend, error) {
	if r.configured == "" {
		return nil, fmt.Errorf("no ai provider configured")
	}

	primary, registered := r.backends[r.configured]
	if !registered {
		return nil, fmt.Errorf("configured ai provider %q is not registered (registered: %v)", r.configured, r.order)
	}

	if primary.IsReady(ctx) {
		return primary, nil
	}

	for _, name := range r.order {
		if name == r.configured {
			continue
		}
		b := r.backends[name]
		if b.IsReady(ctx) {
			r.logger.WarnContext(ctx, "configured ai provider not ready, falling back",
				"configured", r.configured, "fallback", name)
			return b, nil
		}
	}

	return nil, fmt.Errorf("no ready ai backend (configured %q, registered %v)", r.configured, r.order)
}
