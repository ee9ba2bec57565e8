package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kilianp07/smartcharging/core/model"
	corestore "github.com/kilianp07/smartcharging/core/store"
)

// RedisConfig describes the Redis connection.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// RedisStore keeps one JSON document per profile and a sorted set of profile
// ids scored by installation sequence.
//
//	<prefix>profile:<id>  profile JSON
//	<prefix>profiles      zset of ids
//	<prefix>seq           installation counter
type RedisStore struct {
	Client *redis.Client
	Prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "smartcharging:"
	}
	return &RedisStore{Client: client, Prefix: prefix}, nil
}

func (r *RedisStore) profileKey(id int) string { return r.Prefix + "profile:" + strconv.Itoa(id) }
func (r *RedisStore) indexKey() string         { return r.Prefix + "profiles" }
func (r *RedisStore) seqKey() string           { return r.Prefix + "seq" }

func (r *RedisStore) ProfilesForOutlet(ctx context.Context, evseID int) ([]model.ChargingProfile, error) {
	all, err := r.AllProfiles(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.ChargingProfile
	for _, p := range all {
		if p.EvseID == evseID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *RedisStore) AllProfiles(ctx context.Context) ([]model.ChargingProfile, error) {
	ids, err := r.Client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.Prefix + "profile:" + id
	}
	vals, err := r.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.ChargingProfile, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// Deleted between ZRANGE and MGET.
			continue
		}
		var p model.ChargingProfile
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *RedisStore) Get(ctx context.Context, id int) (model.ChargingProfile, error) {
	val, err := r.Client.Get(ctx, r.profileKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return model.ChargingProfile{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.ChargingProfile{}, err
	}
	var p model.ChargingProfile
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return model.ChargingProfile{}, fmt.Errorf("decode profile %d: %w", id, err)
	}
	return p, nil
}

func (r *RedisStore) Put(ctx context.Context, p model.ChargingProfile) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %d: %w", p.ID, err)
	}
	seq, err := r.Client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return err
	}
	if err := r.Client.Set(ctx, r.profileKey(p.ID), string(body), 0).Err(); err != nil {
		return err
	}
	return r.Client.ZAdd(ctx, r.indexKey(), &redis.Z{Score: float64(seq), Member: strconv.Itoa(p.ID)}).Err()
}

func (r *RedisStore) Delete(ctx context.Context, id int) error {
	n, err := r.Client.ZRem(ctx, r.indexKey(), strconv.Itoa(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return corestore.ErrNotFound
	}
	return r.Client.Del(ctx, r.profileKey(id)).Err()
}

// Close closes the client.
func (r *RedisStore) Close() error { return r.Client.Close() }
