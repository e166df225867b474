package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"yacht-twin/monitor/internal/config"
	"yacht-twin/monitor/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using system environment variables")
	}

	cfg := config.Load()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	ctx := context.Background()

	fmt.Println("Connecting to Redis...")
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Redis is running:\n  docker-compose up -d redis", err)
	}
	fmt.Println("✓ Connected")

	step1_api_keys(ctx, client)
	step2_verify(ctx, client)

	fmt.Println("\n✅ Redis seeded successfully")
	fmt.Println("   Run next: AUTH_ENABLED=true REDIS_ENABLED=true go run ./cmd/twin")
}

// seedKeys maps API key to owner. The twin only checks that an owner exists.
var seedKeys = map[string]string{
	"bridge_console_key":  "bridge",
	"naval_architect_key": "design_office",
	"shore_ops_key":       "shore_ops",
	"test_key":            "test_owner",
}

func step1_api_keys(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 1: Seeding API keys ────────────────────")

	// TTL 0: permanent
	for apiKey, owner := range seedKeys {
		key := store.AuthKey(apiKey)
		if err := client.Set(ctx, key, owner, 0).Err(); err != nil {
			log.Fatalf("Failed to set key %s: %v", key, err)
		}
		fmt.Printf("  ✓ %-40s → %s\n", key, owner)
	}
}

func step2_verify(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 2: Verification ────────────────────────")

	keys, err := client.Keys(ctx, store.AuthKey("*")).Result()
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	fmt.Printf("  ✓ %d API keys found in Redis\n", len(keys))

	rs := store.NewRedisStoreFromClient(client, 0)
	owner, err := rs.GetAPIKey(ctx, "test_key")
	if err != nil || owner == "" {
		log.Fatalf("Spot check failed: owner=%q err=%v", owner, err)
	}
	fmt.Printf("  ✓ spot check: %s → %s\n", store.AuthKey("test_key"), owner)
}
