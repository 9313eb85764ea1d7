package cache

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// OTPEntry is a pending verification code. Only its hash is stored.
type OTPEntry struct {
	CodeHash  string    `msgpack:"h"`
	ExpiresAt time.Time `msgpack:"e"`
}

type OTPCache struct {
	redis *RedisCache
}

func NewOTPCache(redis *RedisCache) *OTPCache {
	return &OTPCache{redis: redis}
}

func otpKey(phone string) string {
	return fmt.Sprintf("otp:%s", phone)
}

func otpAttemptsKey(phone string) string {
	return fmt.Sprintf("otp:%s:attempts", phone)
}

// Save replaces any pending code for phone and resets its attempt counter.
func (oc *OTPCache) Save(phone string, entry OTPEntry, ttl time.Duration) error {
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return err
	}
	if err := oc.redis.Set(otpKey(phone), data, ttl); err != nil {
		return err
	}
	return oc.redis.Delete(otpAttemptsKey(phone))
}

// Load returns the pending entry or nil when none exists.
func (oc *OTPCache) Load(phone string) (*OTPEntry, error) {
	data, err := oc.redis.Get(otpKey(phone))
	if err != nil || data == nil {
		return nil, err
	}
	var entry OTPEntry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// RecordAttempt increments and returns the number of verification attempts.
func (oc *OTPCache) RecordAttempt(phone string, ttl time.Duration) (int64, error) {
	return oc.redis.Incr(otpAttemptsKey(phone), ttl)
}

func (oc *OTPCache) Clear(phone string) error {
	return oc.redis.Delete(otpKey(phone), otpAttemptsKey(phone))
}

func otpLockKey(phone string) string {
	return fmt.Sprintf("otp:%s:lock", phone)
}

// Lock blocks new codes and verification for phone until ttl elapses.
func (oc *OTPCache) Lock(phone string, ttl time.Duration) error {
	if err := oc.redis.Set(otpLockKey(phone), []byte("1"), ttl); err != nil {
		return err
	}
	return oc.Clear(phone)
}

func (oc *OTPCache) IsLocked(phone string) bool {
	return oc.redis.Exists(otpLockKey(phone))
}
