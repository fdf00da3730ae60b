package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"tush00nka/schoolconnect_chat/internal/model"

	"github.com/redis/go-redis/v9"
)

const historyCacheTTL = 24 * time.Hour

// HistoryCache кеш последних сообщений комнаты.
// Ошибки кеша не влияют на корректность: источник истины - БД.
type HistoryCache interface {
	Put(ctx context.Context, msgs ...model.ChatMessage) error
	Range(ctx context.Context, roomID string, beforeSequence uint64, limit int) ([]model.ChatMessage, error)
}

// redisHistoryCache хранит сообщения в sorted set, score = sequence,
// поэтому порядок записи в кеш не влияет на порядок чтения
type redisHistoryCache struct {
	rdb     *redis.Client
	maxSize int64
}

func NewHistoryCache(rdb *redis.Client, maxSize int) HistoryCache {
	if rdb == nil || maxSize <= 0 {
		return noopHistoryCache{}
	}
	return &redisHistoryCache{rdb: rdb, maxSize: int64(maxSize)}
}

func (r *redisHistoryCache) getHistoryKey(roomID string) string {
	return fmt.Sprintf("chat:%s:history", roomID)
}

func (r *redisHistoryCache) Put(ctx context.Context, msgs ...model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	keys := make(map[string]struct{})
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, msg := range msgs {
			data, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("failed to marshal message: %w", err)
			}

			key := r.getHistoryKey(msg.RoomID)
			keys[key] = struct{}{}
			score := strconv.FormatUint(msg.Sequence, 10)

			// Один элемент на sequence, даже если сериализация отличается
			pipe.ZRemRangeByScore(ctx, key, score, score)
			pipe.ZAdd(ctx, key, redis.Z{Score: float64(msg.Sequence), Member: data})
		}

		for key := range keys {
			pipe.ZRemRangeByRank(ctx, key, 0, -(r.maxSize + 1))
			pipe.Expire(ctx, key, historyCacheTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cache messages: %w", err)
	}

	return nil
}

func (r *redisHistoryCache) Range(ctx context.Context, roomID string, beforeSequence uint64, limit int) ([]model.ChatMessage, error) {
	upper := "+inf"
	if beforeSequence > 0 {
		upper = "(" + strconv.FormatUint(beforeSequence, 10)
	}

	values, err := r.rdb.ZRevRangeByScore(ctx, r.getHistoryKey(roomID), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   upper,
		Count: int64(limit),
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history cache: %w", err)
	}

	messages := make([]model.ChatMessage, 0, len(values))
	for _, v := range values {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			// Битая запись - считаем промахом
			return nil, nil
		}
		if msg.Attachments == nil {
			msg.Attachments = []string{}
		}
		messages = append(messages, msg)
	}

	slices.Reverse(messages)
	return messages, nil
}

type noopHistoryCache struct{}

func (noopHistoryCache) Put(context.Context, ...model.ChatMessage) error { return nil }

func (noopHistoryCache) Range(context.Context, string, uint64, int) ([]model.ChatMessage, error) {
	return nil, nil
}
