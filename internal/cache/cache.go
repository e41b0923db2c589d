// Package cache wraps the Redis keyed store. Everything in here carries an
// explicit expiry: login sessions, password-reset OTPs, and the short-lived
// observation cache that deduplicates scrapes of the same ASIN.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"pricepal/internal/model"
)

type Cache struct {
	*redis.Client
}

var ErrNotFound = errors.New("key not found in cache")

func ConnectCache(ctx context.Context, redisURI string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURI)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing Redis URI: %s", redisURI)
	}
	c := redis.NewClient(opts)
	if err = c.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "error pinging Redis at: %s", redisURI)
	}
	return c, nil
}

func sessionKey(userID string, tokenID string) string {
	return "session:" + userID + ":" + tokenID
}

func (c Cache) SessionSet(ctx context.Context, userID string, tokenID string, tokenHash []byte, ttl time.Duration) error {
	err := c.Set(ctx, sessionKey(userID, tokenID), tokenHash, ttl).Err()
	return errors.Wrapf(err, "error storing session for UserID: %s, TokenID: %s", userID, tokenID)
}

func (c Cache) SessionGet(ctx context.Context, userID string, tokenID string) ([]byte, error) {
	h, err := c.Get(ctx, sessionKey(userID, tokenID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.Wrapf(ErrNotFound, "no session for UserID: %s, TokenID: %s", userID, tokenID)
	}
	return h, errors.Wrapf(err, "error getting session for UserID: %s, TokenID: %s", userID, tokenID)
}

func (c Cache) SessionDelete(ctx context.Context, userID string, tokenID string) error {
	err := c.Del(ctx, sessionKey(userID, tokenID)).Err()
	return errors.Wrapf(err, "error deleting session for UserID: %s, TokenID: %s", userID, tokenID)
}

func (c Cache) OTPSet(ctx context.Context, email string, otpHash []byte, ttl time.Duration) error {
	err := c.Set(ctx, "otp:"+email, otpHash, ttl).Err()
	return errors.Wrapf(err, "error storing OTP for email: %s", email)
}

func (c Cache) OTPGet(ctx context.Context, email string) ([]byte, error) {
	h, err := c.Get(ctx, "otp:"+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.Wrapf(ErrNotFound, "no OTP for email: %s", email)
	}
	return h, errors.Wrapf(err, "error getting OTP for email: %s", email)
}

func (c Cache) OTPDelete(ctx context.Context, email string) error {
	err := c.Del(ctx, "otp:"+email).Err()
	return errors.Wrapf(err, "error deleting OTP for email: %s", email)
}

func (c Cache) ObservationSet(ctx context.Context, o model.Observation, ttl time.Duration) error {
	b, err := json.Marshal(o)
	if err != nil {
		return errors.Wrapf(err, "error marshalling Observation for ASIN: %s", o.ASIN)
	}
	err = c.Set(ctx, "observation:"+o.ASIN, b, ttl).Err()
	return errors.Wrapf(err, "error storing Observation for ASIN: %s", o.ASIN)
}

func (c Cache) ObservationGet(ctx context.Context, asin string) (model.Observation, error) {
	var o model.Observation
	b, err := c.Get(ctx, "observation:"+asin).Bytes()
	if errors.Is(err, redis.Nil) {
		return o, errors.Wrapf(ErrNotFound, "no Observation for ASIN: %s", asin)
	}
	if err != nil {
		return o, errors.Wrapf(err, "error getting Observation for ASIN: %s", asin)
	}
	if err = json.Unmarshal(b, &o); err != nil {
		return o, errors.Wrapf(err, "error unmarshalling Observation for ASIN: %s, body: %s", asin, b)
	}
	return o, nil
}
