package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"yacht-twin/monitor/internal/config"
	"yacht-twin/monitor/internal/domain"
)

const (
	stateKey         = "twin:state"
	historyKey       = "twin:history"
	telemetryChannel = "twin:telemetry"
	AlertsChannel    = "twin:alerts"
	authKeyPrefix    = "twin:auth:"
)

type RedisStore struct {
	client      *redis.Client
	historySize int64
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.HistorySize), nil
}

func NewRedisStoreFromClient(client *redis.Client, historySize int) *RedisStore {
	if historySize <= 0 {
		historySize = 30
	}
	return &RedisStore{client: client, historySize: int64(historySize)}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// PipelineStateUpdate mirrors the latest tick into Redis: the state hash,
// a capped history list, and a pub/sub notification.
func (r *RedisStore) PipelineStateUpdate(ctx context.Context, msg *domain.TelemetrySample) error {
	stateData := map[string]any{
		"session_id":     msg.SessionID,
		"lc":             msg.Params.LC,
		"pc":             msg.Params.PC,
		"ld":             msg.Params.LD,
		"bdr":            msg.Params.BDr,
		"lb":             msg.Params.LB,
		"fr":             msg.Params.Fr,
		"target_fr":      msg.TargetFr,
		"rr":             msg.Point.Resistance,
		"carbon":         msg.Point.Carbon,
		"tier":           string(msg.Point.Tier),
		"recommendation": msg.Point.Recommendation,
		"timestamp":      msg.Point.Timestamp.Unix(),
	}

	pointPayload, err := json.Marshal(msg.Point)
	if err != nil {
		return fmt.Errorf("failed to marshal point: %w", err)
	}

	pipe := r.client.Pipeline()

	pipe.HSet(ctx, stateKey, stateData)
	pipe.Expire(ctx, stateKey, 30*time.Second)
	pipe.RPush(ctx, historyKey, pointPayload)
	pipe.LTrim(ctx, historyKey, -r.historySize, -1)
	pipe.Publish(ctx, telemetryChannel, pointPayload)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}

	return nil
}

// AuthKey is the Redis key holding the owner of an API key.
func AuthKey(apiKey string) string {
	return authKeyPrefix + apiKey
}

func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	val, err := r.client.Get(ctx, AuthKey(apiKey)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}

// ClaimAlert sets the dedup key for a tier if it is not already held and
// reports whether this caller won it.
func (r *RedisStore) ClaimAlert(ctx context.Context, sessionID string, tier domain.Tier, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("alert:%s:%s", sessionID, string(tier))
	ok, err := r.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim failed: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) PublishAlert(ctx context.Context, payload []byte) error {
	return r.client.Publish(ctx, AlertsChannel, payload).Err()
}
