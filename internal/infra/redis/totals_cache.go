package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/entity"
	goredis "github.com/redis/go-redis/v9"
)

// TotalsCache keeps the finished GameTotals of a session close to the API.
type TotalsCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewTotalsCache(client *goredis.Client, ttl time.Duration) *TotalsCache {
	return &TotalsCache{client: client, ttl: ttl}
}

// NewClient parses a redis:// URL and checks the server answers.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func totalsKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:totals", sessionID)
}

func (c *TotalsCache) WriteTotals(ctx context.Context, sessionID uuid.UUID, totals *entity.GameTotals) error {
	data, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("marshaling totals: %w", err)
	}
	if err := c.client.Set(ctx, totalsKey(sessionID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}
	return nil
}

// ReadTotals returns (nil, nil) when the session is not cached.
func (c *TotalsCache) ReadTotals(ctx context.Context, sessionID uuid.UUID) (*entity.GameTotals, error) {
	data, err := c.client.Get(ctx, totalsKey(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read totals: %w", err)
	}

	totals := entity.NewGameTotals()
	if err := json.Unmarshal(data, totals); err != nil {
		return nil, fmt.Errorf("unmarshaling totals: %w", err)
	}
	return totals, nil
}

func (c *TotalsCache) DeleteTotals(ctx context.Context, sessionID uuid.UUID) error {
	if err := c.client.Del(ctx, totalsKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete totals: %w", err)
	}
	return nil
}

func (c *TotalsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
