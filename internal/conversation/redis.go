package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ragchat/internal/apperr"
)

const keyPrefix = "conv:"

// RedisStore keeps each conversation as a Redis list of JSON messages under
// "conv:{id}".
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func key(id string) string { return keyPrefix + id }

func (s *RedisStore) NewID() string { return newID() }

func (s *RedisStore) Append(ctx context.Context, id string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternalFailure, "encoding message")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key(id), payload)
		pipe.Expire(ctx, key(id), s.ttl)
		return nil
	})
	if err != nil {
		return apperr.Wrap(err, apperr.CodeConversationStoreFailure, "appending message", apperr.Field("conversation_id", id))
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context, id string) ([]Message, error) {
	raw, err := s.client.LRange(ctx, key(id), 0, -1).Result()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConversationStoreFailure, "reading conversation", apperr.Field("conversation_id", id))
	}

	msgs := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeConversationStoreFailure, "decoding stored message", apperr.Field("conversation_id", id))
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return apperr.Wrap(err, apperr.CodeConversationStoreFailure, "clearing conversation", apperr.Field("conversation_id", id))
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
