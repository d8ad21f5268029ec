package access

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/velvetfeed/velvetfeed-backend/internal/identity"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
)

type decisionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessDecisionKey(identity string) string
}

// DecisionCache keeps recent decisions in redis under a short TTL. Purely a
// latency shortcut: a miss or a cache failure falls through to a fresh
// lookup, and sign-out invalidates the entry so revocation is never masked
// longer than the TTL.
type DecisionCache struct {
	store decisionStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewDecisionCache(store decisionStore, ttl time.Duration, logg *logger.Logger) *DecisionCache {
	if store == nil || ttl <= 0 {
		return nil
	}
	return &DecisionCache{store: store, ttl: ttl, logg: logg}
}

// Get returns the cached decision for a normalized identity, if present.
func (c *DecisionCache) Get(ctx context.Context, normalized string) (Decision, bool) {
	if c == nil || normalized == "" {
		return Decision{}, false
	}
	raw, err := c.store.Get(ctx, c.key(normalized))
	if err != nil {
		if !errors.Is(err, redislib.Nil) && c.logg != nil {
			c.logg.Warn(ctx, "decision cache read failed: "+err.Error())
		}
		return Decision{}, false
	}
	var decision Decision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return Decision{}, false
	}
	return decision, true
}

// Put stores the decision; failures are logged and ignored.
func (c *DecisionCache) Put(ctx context.Context, normalized string, decision Decision) {
	if c == nil || normalized == "" {
		return
	}
	encoded, err := json.Marshal(decision)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.key(normalized), string(encoded), c.ttl); err != nil && c.logg != nil {
		c.logg.Warn(ctx, "decision cache write failed: "+err.Error())
	}
}

// Invalidate removes the cached entry for the identity.
func (c *DecisionCache) Invalidate(ctx context.Context, normalized string) {
	if c == nil || normalized == "" {
		return
	}
	if err := c.store.Del(ctx, c.key(normalized)); err != nil && c.logg != nil {
		c.logg.Warn(ctx, "decision cache invalidation failed: "+err.Error())
	}
}

func (c *DecisionCache) key(normalized string) string {
	return c.store.AccessDecisionKey(identity.Fingerprint(normalized))
}
