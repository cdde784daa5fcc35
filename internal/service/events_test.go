package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeChannel struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeChannel) Publish(_ context.Context, channel string, payload []byte) error {
	f.channel = channel
	f.payload = payload
	return f.err
}

func TestRedisPublisher_PublishesJSON(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewRedisPublisher(ch, "tracking.events")

	ev := Event{Type: EventQualityAuditRequested, TaskID: "task-1", RevisionCount: 4, Threshold: 3, OccurredAt: testStart}
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish 应成功: %v", err)
	}
	if ch.channel != "tracking.events" {
		t.Errorf("期望频道 tracking.events，实际 %s", ch.channel)
	}

	var got map[string]any
	if err := json.Unmarshal(ch.payload, &got); err != nil {
		t.Fatalf("payload 应为合法 JSON: %v", err)
	}
	if got["type"] != EventQualityAuditRequested || got["task_id"] != "task-1" || got["revision_count"] != float64(4) {
		t.Errorf("payload 字段不符: %v", got)
	}
	if _, ok := got["operator_id"]; ok {
		t.Error("operator_id 为空时应省略")
	}
	if got["occurred_at"] != testStart.Format(time.RFC3339) {
		t.Errorf("occurred_at 期望 %s，实际 %v", testStart.Format(time.RFC3339), got["occurred_at"])
	}
}

func TestPublishAdvisory_SwallowsErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("connection refused")}
	// 不应 panic，也不向调用方返回错误
	publishAdvisory(context.Background(), NewRedisPublisher(ch, "x"), zap.NewNop(), Event{Type: EventQualityAuditRequested})
	publishAdvisory(context.Background(), nil, zap.NewNop(), Event{})

	if err := NewLogPublisher(zap.NewNop()).Publish(context.Background(), Event{Type: "t"}); err != nil {
		t.Errorf("日志发布器不应返回错误: %v", err)
	}
}
