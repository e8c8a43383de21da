package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gogotex/records/internal/record"
	"github.com/gogotex/records/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisRepo implements Store on Redis.
// Layout under prefix:
//
//	record:<owner>:<id>  JSON-encoded record
//	owner:<owner>        set of ids owned by <owner>
//	next_id              NextId counter
type RedisRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based record store. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepo {
	if prefix == "" {
		prefix = "records:"
	}
	return &RedisRepo{client: client, prefix: prefix}
}

func (r *RedisRepo) recordKey(owner string, id uint64) string {
	return r.prefix + "record:" + owner + ":" + strconv.FormatUint(id, 10)
}

func (r *RedisRepo) ownerKey(owner string) string {
	return r.prefix + "owner:" + owner
}

func (r *RedisRepo) counterKey() string {
	return r.prefix + "next_id"
}

func (r *RedisRepo) Get(ctx context.Context, owner string, id uint64) (*record.Record, error) {
	b, err := r.client.Get(ctx, r.recordKey(owner, id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec record.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RedisRepo) Put(ctx context.Context, owner string, rec *record.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.recordKey(owner, rec.ID), b, 0)
		p.SAdd(ctx, r.ownerKey(owner), strconv.FormatUint(rec.ID, 10))
		return nil
	})
	return err
}

func (r *RedisRepo) Remove(ctx context.Context, owner string, id uint64) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.recordKey(owner, id))
		p.SRem(ctx, r.ownerKey(owner), strconv.FormatUint(id, 10))
		return nil
	})
	return err
}

func (r *RedisRepo) List(ctx context.Context, owner string) ([]*record.Record, error) {
	members, err := r.client.SMembers(ctx, r.ownerKey(owner)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			logger.Warnf("redis records: skipping bad id %q in %s", m, r.ownerKey(owner))
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*record.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := r.Get(ctx, owner, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisRepo) ReadCounter(ctx context.Context) (uint64, error) {
	v, err := r.client.Get(ctx, r.counterKey()).Uint64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return v, nil
}

func (r *RedisRepo) WriteCounter(ctx context.Context, v uint64) error {
	if err := checkRange(v); err != nil {
		return fmt.Errorf("write counter: %w", err)
	}
	return r.client.Set(ctx, r.counterKey(), strconv.FormatUint(v, 10), 0).Err()
}

// IncrementCounter uses INCR, which treats a missing key as 0 and refuses to
// go past the signed 64-bit maximum.
func (r *RedisRepo) IncrementCounter(ctx context.Context) (uint64, error) {
	v, err := r.client.Incr(ctx, r.counterKey()).Result()
	if err != nil {
		if strings.Contains(err.Error(), "overflow") {
			return 0, ErrCounterOverflow
		}
		return 0, err
	}
	return uint64(v), nil
}
