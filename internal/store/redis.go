package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds configuration for Redis connection.
type RedisConfig struct {
	// Addr is the Redis server address (host:port) for standalone mode.
	// Ignored if UseSentinel is true.
	Addr string

	// Password for Redis authentication.
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// UseSentinel enables Redis Sentinel mode for high availability.
	UseSentinel bool

	// SentinelAddrs is the list of Sentinel server addresses.
	SentinelAddrs []string

	// MasterName is the name of the Redis master in Sentinel mode.
	MasterName string

	// KeyPrefix namespaces every key the store writes.
	KeyPrefix string

	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "membergraph",
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// NewRedis returns a Store backed by Redis.
//
// Data model, per entity:
//   - <prefix>:<entity>:<id> (string) - JSON record
//   - <prefix>:<entity>:all (zset) - every id, scored by creation sequence
//   - <prefix>:<entity>:idx:<field>:<value> (zset) - ids per relation value
//   - <prefix>:subscription:subscriber:<id> / :author:<id> (zset) - edges
//
// Batched lookups are a single MGET. Member types are not seeded here; call
// SeedMemberTypes once the server is reachable.
func NewRedis(cfg *RedisConfig) *Store {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}
	var client redis.UniversalClient
	if cfg.UseSentinel {
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.SentinelAddrs,
			Password:      cfg.Password,
			DB:            cfg.DB,
			MaxRetries:    cfg.MaxRetries,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
			PoolSize:      cfg.PoolSize,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})
	}
	return NewRedisWithClient(client, cfg.KeyPrefix)
}

// NewRedisWithClient builds the Store on an existing client.
func NewRedisWithClient(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "membergraph"
	}
	return &Store{
		Users:         newRedisTable[User](client, prefix+":user"),
		Posts:         newRedisTable[Post](client, prefix+":post", FieldAuthorID),
		Profiles:      newRedisTable[Profile](client, prefix+":profile", FieldUserID, FieldMemberTypeID),
		MemberTypes:   newRedisTable[MemberType](client, prefix+":memberType"),
		Subscriptions: &redisEdges{client: client, ns: prefix + ":subscription"},
		ping:          func(ctx context.Context) error { return client.Ping(ctx).Err() },
		close:         client.Close,
	}
}

type redisTable[T Entity] struct {
	client  redis.UniversalClient
	ns      string
	indexed map[string]bool
}

func newRedisTable[T Entity](client redis.UniversalClient, ns string, indexed ...string) *redisTable[T] {
	t := &redisTable[T]{client: client, ns: ns, indexed: map[string]bool{}}
	for _, f := range indexed {
		t.indexed[f] = true
	}
	return t
}

func (r *redisTable[T]) recordKey(id string) string { return r.ns + ":" + id }
func (r *redisTable[T]) allKey() string            { return r.ns + ":all" }
func (r *redisTable[T]) seqKey() string            { return r.ns + ":seq" }
func (r *redisTable[T]) indexKey(field, value string) string {
	return r.ns + ":idx:" + field + ":" + value
}

func (r *redisTable[T]) FindByID(ctx context.Context, id string) (*T, error) {
	data, err := r.client.Get(ctx, r.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", r.ns, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", r.ns, err)
	}
	return &v, nil
}

func (r *redisTable[T]) FindByIDs(ctx context.Context, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	raw, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget %s: %w", r.ns, err)
	}
	out := make([]*T, len(ids))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", r.ns, err)
		}
		out[i] = &v
	}
	return out, nil
}

func (r *redisTable[T]) FindMany(ctx context.Context, filter Filter) ([]*T, error) {
	if !filter.IsZero() && r.indexed[filter.Field] {
		ids, err := r.client.ZRange(ctx, r.indexKey(filter.Field, filter.Value), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", r.ns, err)
		}
		return r.present(ctx, ids)
	}

	ids, err := r.client.ZRange(ctx, r.allKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.ns, err)
	}
	all, err := r.present(ctx, ids)
	if err != nil || filter.IsZero() {
		return all, err
	}
	out := []*T{}
	for _, v := range all {
		if attr, ok := (*v).Attr(filter.Field); ok && attr == filter.Value {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *redisTable[T]) FindManyBy(ctx context.Context, field string, values []string) ([][]*T, error) {
	out := make([][]*T, len(values))
	for i := range out {
		out[i] = []*T{}
	}
	if len(values) == 0 {
		return out, nil
	}
	if !r.indexed[field] {
		all, err := r.FindMany(ctx, Filter{})
		if err != nil {
			return nil, err
		}
		for i, val := range values {
			for _, v := range all {
				if attr, ok := (*v).Attr(field); ok && attr == val {
					out[i] = append(out[i], v)
				}
			}
		}
		return out, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(values))
	for i, val := range values {
		cmds[i] = pipe.ZRange(ctx, r.indexKey(field, val), 0, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read %s index %s: %w", r.ns, field, err)
	}

	var ids []string
	for _, cmd := range cmds {
		ids = append(ids, cmd.Val()...)
	}
	records, err := r.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	n := 0
	for i, cmd := range cmds {
		for range cmd.Val() {
			if records[n] != nil {
				out[i] = append(out[i], records[n])
			}
			n++
		}
	}
	return out, nil
}

func (r *redisTable[T]) Create(ctx context.Context, v T) (*T, error) {
	id := v.Key()
	if id == "" {
		return nil, ErrInvalidID
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", r.ns, err)
	}
	created, err := r.client.SetNX(ctx, r.recordKey(id), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", r.ns, err)
	}
	if !created {
		return nil, ErrConflict
	}
	seq, err := r.client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to sequence %s: %w", r.ns, err)
	}

	score := float64(seq)
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, r.allKey(), redis.Z{Score: score, Member: id})
	for field := range r.indexed {
		if attr, ok := v.Attr(field); ok && attr != "" {
			pipe.ZAdd(ctx, r.indexKey(field, attr), redis.Z{Score: score, Member: id})
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", r.ns, err)
	}
	return &v, nil
}

func (r *redisTable[T]) Update(ctx context.Context, id string, mutate func(*T)) (*T, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *existing
	mutate(&next)
	if next.Key() != id {
		return nil, ErrInvalidID
	}
	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", r.ns, err)
	}
	score, err := r.client.ZScore(ctx, r.allKey(), id).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read %s order: %w", r.ns, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.recordKey(id), data, 0)
	for field := range r.indexed {
		before, _ := (*existing).Attr(field)
		after, _ := next.Attr(field)
		if before == after {
			continue
		}
		if before != "" {
			pipe.ZRem(ctx, r.indexKey(field, before), id)
		}
		if after != "" {
			pipe.ZAdd(ctx, r.indexKey(field, after), redis.Z{Score: score, Member: id})
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", r.ns, err)
	}
	return &next, nil
}

func (r *redisTable[T]) Delete(ctx context.Context, id string) (*T, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.recordKey(id))
	pipe.ZRem(ctx, r.allKey(), id)
	for field := range r.indexed {
		if attr, ok := (*existing).Attr(field); ok && attr != "" {
			pipe.ZRem(ctx, r.indexKey(field, attr), id)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w", r.ns, err)
	}
	return existing, nil
}

// present loads ids and drops the ones whose record is gone.
func (r *redisTable[T]) present(ctx context.Context, ids []string) ([]*T, error) {
	records, err := r.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

type redisEdges struct {
	client redis.UniversalClient
	ns     string
}

func (r *redisEdges) subscriberKey(id string) string { return r.ns + ":subscriber:" + id }
func (r *redisEdges) authorKey(id string) string     { return r.ns + ":author:" + id }

func (r *redisEdges) Add(ctx context.Context, subscriberID, authorID string) (*Subscription, error) {
	if subscriberID == "" || authorID == "" {
		return nil, ErrInvalidID
	}
	seq, err := r.client.Incr(ctx, r.ns+":seq").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to sequence subscription: %w", err)
	}
	added, err := r.client.ZAddNX(ctx, r.subscriberKey(subscriberID), redis.Z{Score: float64(seq), Member: authorID}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to add subscription: %w", err)
	}
	if added == 0 {
		return nil, ErrConflict
	}
	if err := r.client.ZAdd(ctx, r.authorKey(authorID), redis.Z{Score: float64(seq), Member: subscriberID}).Err(); err != nil {
		return nil, fmt.Errorf("failed to add subscription: %w", err)
	}
	return &Subscription{SubscriberID: subscriberID, AuthorID: authorID}, nil
}

func (r *redisEdges) Remove(ctx context.Context, subscriberID, authorID string) (*Subscription, error) {
	removed, err := r.client.ZRem(ctx, r.subscriberKey(subscriberID), authorID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to remove subscription: %w", err)
	}
	if removed == 0 {
		return nil, ErrNotFound
	}
	if err := r.client.ZRem(ctx, r.authorKey(authorID), subscriberID).Err(); err != nil {
		return nil, fmt.Errorf("failed to remove subscription: %w", err)
	}
	return &Subscription{SubscriberID: subscriberID, AuthorID: authorID}, nil
}

func (r *redisEdges) AuthorsOf(ctx context.Context, subscriberIDs []string) ([][]string, error) {
	return r.ranges(ctx, subscriberIDs, r.subscriberKey)
}

func (r *redisEdges) SubscribersOf(ctx context.Context, authorIDs []string) ([][]string, error) {
	return r.ranges(ctx, authorIDs, r.authorKey)
}

func (r *redisEdges) ranges(ctx context.Context, ids []string, key func(string) string) ([][]string, error) {
	out := make([][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.ZRange(ctx, key(id), 0, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}
	for i, cmd := range cmds {
		out[i] = cmd.Val()
		if out[i] == nil {
			out[i] = []string{}
		}
	}
	return out, nil
}
