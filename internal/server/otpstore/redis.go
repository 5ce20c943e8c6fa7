package otpstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores codes as JSON values whose TTL matches the code expiry.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "meetflow:otp:"}
}

func (r *Redis) key(uid string) string { return r.prefix + uid }

func (r *Redis) SaveOTP(ctx context.Context, meetingUID string, c Code) error {
	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		return r.DeleteOTP(ctx, meetingUID)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(meetingUID), data, ttl).Err()
}

func (r *Redis) GetOTP(ctx context.Context, meetingUID string) (Code, error) {
	value, err := r.client.Get(ctx, r.key(meetingUID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Code{}, ErrNotFound
	}
	if err != nil {
		return Code{}, err
	}
	var c Code
	if err := json.Unmarshal(value, &c); err != nil {
		return Code{}, err
	}
	return c, nil
}

func (r *Redis) DeleteOTP(ctx context.Context, meetingUID string) error {
	return r.client.Del(ctx, r.key(meetingUID)).Err()
}
