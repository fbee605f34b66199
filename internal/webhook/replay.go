package webhook

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/cache"
)

const replayTTL = 5 * time.Minute

// ReplayGuard rejects a delivery id seen within the last replayTTL. Store
// errors fail open (admit the delivery, log a warning) per §4.1.3: a
// replay-store outage must never block legitimate traffic.
type ReplayGuard struct {
	Store cache.Store
}

func NewReplayGuard(store cache.Store) *ReplayGuard {
	return &ReplayGuard{Store: store}
}

// Admit reports whether deliveryID has not been seen before. An empty
// deliveryID always admits: not every provider event carries one.
func (g *ReplayGuard) Admit(ctx context.Context, deliveryID string) bool {
	if deliveryID == "" {
		return true
	}
	ok, err := g.Store.SetNX(ctx, "webhook:replay:"+deliveryID, []byte("1"), replayTTL)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("delivery_id", deliveryID).Msg("replay store unavailable, admitting webhook")
		return true
	}
	return ok
}
