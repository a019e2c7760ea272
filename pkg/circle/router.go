package circle

import (
	"context"
	"fmt"

	"github.com/papercomputeco/chora/pkg/store"
)

// Router decides which cloud circles should receive a given entity's
// changes. It crosses the entity's inhabits bonds with the keyring's cloud
// bindings.
type Router struct {
	store   *store.Store
	keyring *Keyring
}

// NewRouter creates a router over the given store and keyring.
func NewRouter(s *store.Store, k *Keyring) *Router {
	return &Router{store: s, keyring: k}
}

// TargetCircles returns the cloud circle ids the entity's changes should be
// routed to. An entity inhabiting only local or unbound circles yields nil.
func (r *Router) TargetCircles(ctx context.Context, entityID string) ([]string, error) {
	inhabited, err := r.store.InhabitedCircles(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("resolving inhabited circles: %w", err)
	}

	var targets []string
	for _, circleID := range inhabited {
		if !r.keyring.IsLocalOnly(circleID) {
			targets = append(targets, circleID)
		}
	}
	return targets, nil
}

// ShouldEmit reports whether at least one inhabited circle syncs to cloud.
func (r *Router) ShouldEmit(ctx context.Context, entityID string) (bool, error) {
	targets, err := r.TargetCircles(ctx, entityID)
	if err != nil {
		return false, err
	}
	return len(targets) > 0, nil
}
