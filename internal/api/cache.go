package api

import (
	"context"                    // Context for Redis operations
	"fund_ledger/internal/utils" // Cache helpers
	"time"                       // Time durations

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// ReadCache caches per-user list responses in Redis. A nil Client disables it.
type ReadCache struct {
	Client *redis.Client // Redis client, may be nil
	TTL    time.Duration // Lifetime of a cached response
}

// get loads a cached value for the user into dest
func (rc ReadCache) get(ctx context.Context, userID uint, dest any, parts ...string) bool {
	found, err := utils.GetCache(ctx, rc.Client, utils.UserCacheKey(userID, parts...), dest)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Cache read failed")
		return false
	}
	return found
}

// set stores value for the user
func (rc ReadCache) set(ctx context.Context, userID uint, value any, parts ...string) {
	if err := utils.SetCache(ctx, rc.Client, utils.UserCacheKey(userID, parts...), value, rc.TTL); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Cache write failed")
	}
}

// invalidate drops every cached read of the user after a mutation
func (rc ReadCache) invalidate(ctx context.Context, userID uint) {
	if err := utils.DeleteCacheByPrefix(ctx, rc.Client, utils.UserCachePrefix(userID)); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Cache invalidation failed")
	}
}
