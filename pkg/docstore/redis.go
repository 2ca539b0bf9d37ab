package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "oddsfeed"

// Redis implements Store on a Redis instance: one JSON string per document
// plus a per-collection sorted-set index scored by insertion time, which
// gives Find its newest-first ordering.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, prefix: defaultKeyPrefix}, nil
}

// NewRedisWithClient wraps an existing client (tests inject one here).
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: defaultKeyPrefix}
}

func (r *Redis) docKey(collection, id string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, collection, id)
}

func (r *Redis) indexKey(collection string) string {
	return fmt.Sprintf("%s:%s:index", r.prefix, collection)
}

// Insert stores the document and indexes it.
func (r *Redis) Insert(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.docKey(collection, id), data, 0)
	pipe.ZAdd(ctx, r.indexKey(collection), redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return nil
}

// InsertIfAbsent stores the document only when its key is unseen.
func (r *Redis) InsertIfAbsent(ctx context.Context, collection, id string, doc any) (bool, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("marshal document: %w", err)
	}

	set, err := r.client.SetNX(ctx, r.docKey(collection, id), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("insert-if-absent %s/%s: %w", collection, id, err)
	}
	if !set {
		return false, nil
	}

	err = r.client.ZAdd(ctx, r.indexKey(collection), redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: id,
	}).Err()
	if err != nil {
		return false, fmt.Errorf("index %s/%s: %w", collection, id, err)
	}
	return true, nil
}

// Count returns the indexed document count for a collection.
func (r *Redis) Count(ctx context.Context, collection string) (int64, error) {
	n, err := r.client.ZCard(ctx, r.indexKey(collection)).Result()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Find returns up to limit documents, newest first.
func (r *Redis) Find(ctx context.Context, collection string, limit int) ([]json.RawMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	ids, err := r.client.ZRevRange(ctx, r.indexKey(collection), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(collection, id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}

	docs := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			docs = append(docs, json.RawMessage(s))
		}
	}
	return docs, nil
}

// Ping verifies the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
