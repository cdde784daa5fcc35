package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// EventQualityAuditRequested 任务返工次数超过阈值
const EventQualityAuditRequested = "QualityAuditRequested"

// Event 领域事件（仅通知，订阅方自行决定后续动作）
type Event struct {
	Type          string    `json:"type"`
	TaskID        string    `json:"task_id"`
	RevisionCount int       `json:"revision_count"`
	Threshold     int       `json:"threshold"`
	OperatorID    string    `json:"operator_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher 领域事件发布
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// ChannelPublisher 按频道发布原始消息，pkg/redis.Client 满足该接口
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// ── Redis Pub/Sub 实现 ──

type redisPublisher struct {
	client  ChannelPublisher
	channel string
}

// NewRedisPublisher 事件以 JSON 发布到 channel
func NewRedisPublisher(client ChannelPublisher, channel string) EventPublisher {
	return &redisPublisher{client: client, channel: channel}
}

func (p *redisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload)
}

// ── 仅日志实现（Redis 不可用时降级） ──

type logPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher 事件只写入日志
func NewLogPublisher(logger *zap.Logger) EventPublisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("领域事件",
		zap.String("type", event.Type),
		zap.String("task_id", event.TaskID),
		zap.Int("revision_count", event.RevisionCount),
	)
	return nil
}

// publishAdvisory 发布失败只记录告警，不影响调用方
func publishAdvisory(ctx context.Context, pub EventPublisher, logger *zap.Logger, event Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, event); err != nil {
		logger.Warn("事件发布失败", zap.String("type", event.Type), zap.String("task_id", event.TaskID), zap.Error(err))
	}
}
