package cache

import (
	"fmt"
	"strconv"
	"time"

	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

const GroupPullTTL = 2 * time.Minute

// MessageCache caches group pull results. Each group has a version counter;
// entries are keyed by version so a bump orphans every older entry at once.
type MessageCache struct {
	redis *RedisCache
}

// NewMessageCache creates a new message cache
func NewMessageCache(redis *RedisCache) *MessageCache {
	return &MessageCache{redis: redis}
}

func groupVersionKey(groupID uint) string {
	return fmt.Sprintf("group:%d:version", groupID)
}

func groupPullKey(groupID uint, version int64, since *time.Time) string {
	cursor := "all"
	if since != nil {
		cursor = strconv.FormatInt(since.UnixNano(), 10)
	}
	return fmt.Sprintf("group:%d:pull:%d:%s", groupID, version, cursor)
}

// GetGroupPull returns cached messages for a pull cursor.
func (mc *MessageCache) GetGroupPull(groupID uint, since *time.Time) ([]models.MessageResponse, bool) {
	if mc == nil || mc.redis == nil {
		return nil, false
	}
	version, err := mc.redis.GetInt64(groupVersionKey(groupID))
	if err != nil {
		return nil, false
	}
	data, err := mc.redis.Get(groupPullKey(groupID, version, since))
	if err != nil || data == nil {
		return nil, false
	}

	var messages []models.MessageResponse
	if err := msgpack.Unmarshal(data, &messages); err != nil {
		return nil, false
	}
	return messages, true
}

// SetGroupPull stores messages under the version read at the time of the
// call. Pass the version returned by GroupVersion before the database read so
// a concurrent bump cannot be masked.
func (mc *MessageCache) SetGroupPull(groupID uint, version int64, since *time.Time, messages []models.MessageResponse) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(messages)
	if err != nil {
		return err
	}
	return mc.redis.Set(groupPullKey(groupID, version, since), data, GroupPullTTL)
}

func (mc *MessageCache) GroupVersion(groupID uint) int64 {
	if mc == nil || mc.redis == nil {
		return 0
	}
	v, _ := mc.redis.GetInt64(groupVersionKey(groupID))
	return v
}

// InvalidateGroup bumps the group's version.
func (mc *MessageCache) InvalidateGroup(groupID uint) error {
	if mc == nil || mc.redis == nil {
		return nil
	}
	_, err := mc.redis.Incr(groupVersionKey(groupID), 0)
	return err
}
