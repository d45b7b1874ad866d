// Package redis stores completed nodes in Redis sets, one set per learner.
package redis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/concept-modules/internal/nodes"
)

const defaultKeyPrefix = "concepts:nodes:"

// Options configures the Redis connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type client interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *goredis.IntCmd
	SMembers(ctx context.Context, key string) *goredis.StringSliceCmd
	Close() error
}

// Tracker is a Redis-backed nodes.Tracker.
type Tracker struct {
	rdb    client
	prefix string
}

var _ nodes.Tracker = (*Tracker)(nil)

// New dials Redis and verifies connectivity.
func New(ctx context.Context, opts Options) (*Tracker, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, opts.KeyPrefix), nil
}

// NewWithClient wraps an existing client (primarily for testing).
func NewWithClient(rdb client, prefix string) *Tracker {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Tracker{rdb: rdb, prefix: prefix}
}

// MarkComplete implements nodes.Tracker.
func (t *Tracker) MarkComplete(ctx context.Context, learnerID, nodeID string) error {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID == "" {
		return nodes.ErrEmptyNode
	}
	if err := t.rdb.SAdd(ctx, t.key(learnerID), nodeID).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// Completed implements nodes.Tracker.
func (t *Tracker) Completed(ctx context.Context, learnerID string) ([]string, error) {
	members, err := t.rdb.SMembers(ctx, t.key(learnerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

// Close releases the Redis connection.
func (t *Tracker) Close() error {
	return t.rdb.Close()
}

func (t *Tracker) key(learnerID string) string {
	return t.prefix + nodes.LearnerKey(learnerID)
}
