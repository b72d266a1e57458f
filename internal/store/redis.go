package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultNamespace = "auction"

// RedisGateway keeps each document under {namespace}:{name}.
type RedisGateway struct {
	rdb       *redis.Client
	namespace string
}

func OpenRedis(url, namespace string) (*RedisGateway, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	gw := NewRedis(opts, namespace)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gw.Ping(ctx); err != nil {
		gw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return gw, nil
}

func NewRedis(opts *redis.Options, namespace string) *RedisGateway {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisGateway{rdb: redis.NewClient(opts), namespace: namespace}
}

func (r *RedisGateway) key(name string) string { return r.namespace + ":" + name }

func (r *RedisGateway) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisGateway) Load(ctx context.Context) (Documents, error) {
	names := []string{DocItems, DocTeams, DocState}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = r.key(n)
	}

	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read documents from Redis: %w", err)
	}
	docs := Documents{}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		docs[names[i]] = []byte(s)
	}
	return docs, nil
}

func (r *RedisGateway) Save(ctx context.Context, docs Documents) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for name, body := range docs {
			pipe.Set(ctx, r.key(name), body, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write documents to Redis: %w", err)
	}
	return nil
}

func (r *RedisGateway) Close() error { return r.rdb.Close() }
