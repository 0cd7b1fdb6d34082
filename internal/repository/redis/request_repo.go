// Package redis хранит снимок ожидающих заявок в одном hash: code -> JSON.
// Каждая мутация Store пишется сразу (HSET/HDEL), так что перезапуск ничего не теряет.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/xela07ax/reqflow/internal/domain"
	"github.com/xela07ax/reqflow/internal/infra"
	"go.uber.org/zap"
)

type RequestRepo struct {
	rdb    *goredis.Client
	key    string
	logger *zap.Logger
}

func NewRequestRepo(rdb *goredis.Client, logger *zap.Logger) *RequestRepo {
	return &RequestRepo{
		rdb:    rdb,
		key:    infra.RedisKeyRequests,
		logger: logger.With(zap.String("mod", "redis-requests")),
	}
}

// Load: снимок при старте. Отсутствующий ключ: пустое хранилище, не ошибка.
// Битые записи пропускаются с предупреждением: одна испорченная заявка не должна ронять бота.
func (r *RequestRepo) Load(ctx context.Context) ([]domain.Request, error) {
	raw, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.key, err)
	}

	out := make([]domain.Request, 0, len(raw))
	for code, data := range raw {
		var req domain.Request
		if err := json.Unmarshal([]byte(data), &req); err != nil {
			r.logger.Warn("skip corrupt request", zap.String("code", code), zap.Error(err))
			continue
		}
		if req.Code == "" {
			req.Code = code
		}
		out = append(out, req)
	}
	return out, nil
}

func (r *RequestRepo) Put(ctx context.Context, req domain.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request %s: %w", req.Code, err)
	}
	if err := r.rdb.HSet(ctx, r.key, req.Code, data).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", req.Code, err)
	}
	return nil
}

func (r *RequestRepo) Delete(ctx context.Context, code string) error {
	if err := r.rdb.HDel(ctx, r.key, code).Err(); err != nil {
		return fmt.Errorf("hdel %s: %w", code, err)
	}
	return nil
}

// Get читает одну заявку; используется консолью, у которой нет своего Store.
func (r *RequestRepo) Get(ctx context.Context, code string) (*domain.Request, error) {
	data, err := r.rdb.HGet(ctx, r.key, code).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hget %s: %w", code, err)
	}
	var req domain.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request %s: %w", code, err)
	}
	return &req, nil
}
