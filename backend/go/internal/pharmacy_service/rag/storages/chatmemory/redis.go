package chatmemory

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// appendScript 原子地分配序号并追加消息，保证列表顺序与序号一致。
var appendScript = redis.NewScript(`
local seq = redis.call('INCR', KEYS[1])
local turn = cjson.decode(ARGV[1])
turn['sequence'] = seq
redis.call('RPUSH', KEYS[2], cjson.encode(turn))
local ttl = tonumber(ARGV[2])
if ttl > 0 then
	redis.call('EXPIRE', KEYS[1], ttl)
	redis.call('EXPIRE', KEYS[2], ttl)
end
return seq
`)

// RedisStore keeps each conversation as a Redis list of JSON turns plus a sequence counter.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. ttl <= 0 keeps conversations forever.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) keys(conversationID string) (seqKey, listKey string) {
	base := s.prefix + ":" + conversationID
	return base + ":seq", base + ":turns"
}

func (s *RedisStore) Append(ctx context.Context, conversationID string, role models.SpeakerRole, text string) (models.ConversationTurn, error) {
	turn := models.ConversationTurn{
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	payload, err := json.Marshal(turn)
	if err != nil {
		return models.ConversationTurn{}, err
	}

	seqKey, listKey := s.keys(conversationID)
	seq, err := appendScript.Run(ctx, s.client, []string{seqKey, listKey}, string(payload), int64(s.ttl/time.Second)).Int64()
	if err != nil {
		return models.ConversationTurn{}, fmt.Errorf("append turn to redis: %w", err)
	}
	turn.Sequence = seq
	return turn, nil
}

func (s *RedisStore) RecentTurns(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	_, listKey := s.keys(conversationID)
	raw, err := s.client.LRange(ctx, listKey, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read turns from redis: %w", err)
	}

	turns := make([]models.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		var turn models.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// compile-time check to ensure RedisStore implements the ChatMemory interface
var _ interfaces.ChatMemory = (*RedisStore)(nil)
