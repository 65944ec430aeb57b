package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"lunchdesk/internal/models"
)

const keyPrefix = "lunchdesk"

type CacheService interface {
	// GetOrganization returns nil, nil on a cache miss.
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	SetOrganization(ctx context.Context, org *models.Organization, ttl time.Duration) error
	DeleteOrganization(ctx context.Context, orgID uuid.UUID) error

	// AcquireLock takes key for ttl. ok is false when another holder has it.
	// The returned token must be passed to ReleaseLock.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// ReleaseLock deletes key only if it is still held with token.
	ReleaseLock(ctx context.Context, key, token string) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

// NewRedisClient accepts a bare host:port or a redis:// URL.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if password != "" {
			opts.Password = password
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}), nil
}

func NewRedisCacheService(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

func organizationKey(orgID uuid.UUID) string {
	return fmt.Sprintf("%s:organization:%s", keyPrefix, orgID)
}

// ApprovalLockKey names the in-flight lock held while an order is approved.
func ApprovalLockKey(orderID uuid.UUID) string {
	return fmt.Sprintf("%s:lock:approval:%s", keyPrefix, orderID)
}

func (r *redisCacheService) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	data, err := r.client.Get(ctx, organizationKey(orgID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var org models.Organization
	if err := json.Unmarshal(data, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *redisCacheService) SetOrganization(ctx context.Context, org *models.Organization, ttl time.Duration) error {
	data, err := json.Marshal(org)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, organizationKey(org.ID), data, ttl).Err()
}

func (r *redisCacheService) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	return r.client.Del(ctx, organizationKey(orgID)).Err()
}

func (r *redisCacheService) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *redisCacheService) ReleaseLock(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, r.client, []string{key}, token).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
