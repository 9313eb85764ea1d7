package cache

import (
	"fmt"
	"time"
)

const (
	OnlineUsersTTL = 90 * time.Second // Match pong timeout
)

// UserCache tracks which users hold a live websocket connection
type UserCache struct {
	redis *RedisCache
}

// NewUserCache creates a new user cache
func NewUserCache(redis *RedisCache) *UserCache {
	return &UserCache{redis: redis}
}

func onlineKey(userID uint) string {
	return fmt.Sprintf("online:%d", userID)
}

// SetUserOnline marks a user online; the key expires unless refreshed
func (uc *UserCache) SetUserOnline(userID uint) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	return uc.redis.Set(onlineKey(userID), []byte("1"), OnlineUsersTTL)
}

// SetUserOffline clears the online marker
func (uc *UserCache) SetUserOffline(userID uint) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	return uc.redis.Delete(onlineKey(userID))
}

// IsUserOnline reports whether the user has a live connection
func (uc *UserCache) IsUserOnline(userID uint) bool {
	if uc == nil || uc.redis == nil {
		return false
	}
	return uc.redis.Exists(onlineKey(userID))
}
