package repository

import (
	"context"
	"encoding/json"

	"github.com/mocklab/mockgate/internal/model"
)

// RedisTrafficRepo stores each entity's traffic as a capped list,
// newest entry at the head.
type RedisTrafficRepo struct {
	client  *RedisClient
	keyBase string
	listMax int
}

func NewRedisTrafficRepo(client *RedisClient, keyBase string, listMax int) *RedisTrafficRepo {
	if keyBase == "" {
		keyBase = "mock_traffic"
	}
	if listMax <= 0 {
		listMax = 1000
	}
	return &RedisTrafficRepo{
		client:  client,
		keyBase: keyBase,
		listMax: listMax,
	}
}

func (r *RedisTrafficRepo) key(entityID string) string {
	return r.keyBase + ":" + entityID
}

func (r *RedisTrafficRepo) Insert(ctx context.Context, entry *model.TrafficLog) error {
	if entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := r.key(entry.EntityID)
	pipe := r.client.Client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(r.listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisTrafficRepo) List(ctx context.Context, filter model.TrafficFilter) ([]*model.TrafficLog, error) {
	limit := filter.Limit
	if limit <= 0 || limit > r.listMax {
		limit = r.listMax
	}
	// 按 endpoint 过滤时需要扫描整个列表
	fetch := limit
	if filter.EndpointID != "" {
		fetch = r.listMax
	}
	items, err := r.client.Client.LRange(ctx, r.key(filter.EntityID), 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}
	return decodeTraffic(items, filter.EndpointID, limit), nil
}

func (r *RedisTrafficRepo) DeleteByEntity(ctx context.Context, entityID string) error {
	return r.client.Client.Del(ctx, r.key(entityID)).Err()
}

func decodeTraffic(items []string, endpointID string, limit int) []*model.TrafficLog {
	results := make([]*model.TrafficLog, 0, min(len(items), limit))
	for _, raw := range items {
		var entry model.TrafficLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if endpointID != "" && entry.EndpointID != endpointID {
			continue
		}
		results = append(results, &entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
