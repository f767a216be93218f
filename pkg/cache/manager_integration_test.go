//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestManager_Integration_RoundTrip(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	manager := NewManager(client)
	ctx := context.Background()
	pageURL := "https://otx.alienvault.com/api/v1/pulses/subscribed?page=2&limit=10"
	body := []byte(`{"results":[{"id":"p1"}],"next":null}`)

	if err := manager.Set(ctx, pageURL, body, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Query order does not change the key
	got, err := manager.Get(ctx, "https://OTX.alienvault.com/api/v1/pulses/subscribed?limit=10&page=2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("Data mismatch: got %s, want %s", got, body)
	}

	ttl, err := client.TTL(ctx, Key(pageURL)).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Redis TTL = %v, want (0, 1m]", ttl)
	}
}

func TestManager_Integration_RedisExpiry(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	manager := NewManager(client)
	ctx := context.Background()
	pageURL := "https://otx.alienvault.com/api/v1/pulses/subscribed"

	if err := manager.Set(ctx, pageURL, []byte(`{}`), time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := manager.Get(ctx, pageURL); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestManager_Integration_ConnectionLost(t *testing.T) {
	client, cleanup := setupRedis(t)
	manager := NewManager(client)
	cleanup()

	_, err := manager.Get(context.Background(), "https://otx.alienvault.com/api/v1/pulses/subscribed")
	if err == nil {
		t.Fatal("expected error from closed client")
	}
	if errors.Is(err, ErrCacheMiss) {
		t.Errorf("connection errors must not be reported as a miss: %v", err)
	}
}
