package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emori-agent/server/internal/agent/model"
	"github.com/emori-agent/server/internal/agent/risk"
	errx "github.com/emori-agent/server/internal/core/error"
	logx "github.com/emori-agent/server/pkg/logger"
)

// Hash fields of the per-user scoring record.
const (
	fieldRiskScores     = "risk_scores"
	fieldRiskDecayRates = "risk_decay_rates"
	fieldLastUpdateTime = "last_update_time"
	fieldAggregateRisk  = "aggregate_risk"
)

// RedisUserStore keeps the conversation history in a list (append pattern)
// and the scoring state in a hash (overwrite pattern), both under the user's
// id and refreshed to the same TTL on every write.
type RedisUserStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisUserStore(rdb redis.Cmdable, ttl time.Duration) *RedisUserStore {
	return &RedisUserStore{rdb: rdb, ttl: ttl}
}

func (r *RedisUserStore) turnsKey(userID string) string {
	return fmt.Sprintf("user:%s:turns", userID)
}

func (r *RedisUserStore) recordKey(userID string) string {
	return fmt.Sprintf("user:%s:record", userID)
}

// LoadUser returns the user's full record. Unknown users get an empty record
// with a non-nil history, never an error.
func (r *RedisUserStore) LoadUser(ctx context.Context, userID string) (*model.UserRecord, error) {
	record := &model.UserRecord{PastConversation: []model.Turn{}}

	rows, err := r.rdb.LRange(ctx, r.turnsKey(userID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		logx.Error().Err(err).Str("key", r.turnsKey(userID)).Msg("failed to load conversation turns from redis")
		return nil, errx.WrapRedis(err)
	}
	for i, row := range rows {
		var turn model.Turn
		if err := json.Unmarshal([]byte(row), &turn); err != nil {
			logx.Error().Err(err).Str("user_id", userID).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		record.PastConversation = append(record.PastConversation, turn)
	}

	fields, err := r.rdb.HGetAll(ctx, r.recordKey(userID)).Result()
	if err != nil && err != redis.Nil {
		logx.Error().Err(err).Str("key", r.recordKey(userID)).Msg("failed to load user record from redis")
		return nil, errx.WrapRedis(err)
	}

	if raw, ok := fields[fieldRiskScores]; ok {
		scores := map[risk.Label]float64{}
		if err := json.Unmarshal([]byte(raw), &scores); err != nil {
			return nil, fmt.Errorf("unmarshal risk scores: %w", err)
		}
		record.RiskScores = scores
	}
	if raw, ok := fields[fieldRiskDecayRates]; ok {
		rates := map[risk.Label]float64{}
		if err := json.Unmarshal([]byte(raw), &rates); err != nil {
			return nil, fmt.Errorf("unmarshal decay rates: %w", err)
		}
		record.RiskDecayRates = rates
	}
	if raw, ok := fields[fieldLastUpdateTime]; ok {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse last update time: %w", err)
		}
		record.LastUpdateTime = &t
	}
	if raw, ok := fields[fieldAggregateRisk]; ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse aggregate risk: %w", err)
		}
		record.AggregateRisk = &v
	}

	return record, nil
}

// AppendConversation pushes one finished turn onto the user's history list.
func (r *RedisUserStore) AppendConversation(ctx context.Context, userID string, turn model.Turn) error {
	b, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("user_id", userID).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}

	key := r.turnsKey(userID)
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push turn to redis")
		return errx.WrapRedis(err)
	}
	r.touch(ctx, key)
	return nil
}

// OverwriteFields replaces the scoring state with the fields present in
// fields; nil members are left as stored.
func (r *RedisUserStore) OverwriteFields(ctx context.Context, userID string, fields model.UserFields) error {
	values := map[string]any{}

	if fields.RiskScores != nil {
		b, err := json.Marshal(fields.RiskScores)
		if err != nil {
			return fmt.Errorf("marshal risk scores: %w", err)
		}
		values[fieldRiskScores] = b
	}
	if fields.RiskDecayRates != nil {
		b, err := json.Marshal(fields.RiskDecayRates)
		if err != nil {
			return fmt.Errorf("marshal decay rates: %w", err)
		}
		values[fieldRiskDecayRates] = b
	}
	if fields.LastUpdateTime != nil {
		values[fieldLastUpdateTime] = fields.LastUpdateTime.UTC().Format(time.RFC3339Nano)
	}
	if fields.AggregateRisk != nil {
		values[fieldAggregateRisk] = strconv.FormatFloat(*fields.AggregateRisk, 'f', -1, 64)
	}

	if len(values) == 0 {
		return nil
	}

	key := r.recordKey(userID)
	if err := r.rdb.HSet(ctx, key, values).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to write user record to redis")
		return errx.WrapRedis(err)
	}
	r.touch(ctx, key)
	return nil
}

// touch extends the key's TTL. A failed extension is logged but never fails
// the write.
func (r *RedisUserStore) touch(ctx context.Context, key string) {
	if r.ttl <= 0 {
		return
	}
	if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
	} else if !ok {
		logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on user key")
	}
}

var _ model.UserStore = (*RedisUserStore)(nil)
