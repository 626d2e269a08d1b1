// Package queue 定义论文库发布的领域事件及其在 watermill 消息上的编码.
//
// 每条消息的 Payload 是一个 JSON 信封:
//
//	{"header": {"topic": "pv.paper.created", "producer": "papervault", "occurred_at": "...", "version": "v1"},
//	 "payload": {...}}
//
// 信封头同时镜像到 watermill 元数据，便于不解码负载就能路由或过滤.
// 事件在记录持久化之后发布，发布失败不回滚记录. 消费者应忽略未知字段.
package queue

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/oklog/ulid"
)

// PayloadVersionV1 当前负载版本.
const PayloadVersionV1 = "v1"

// 镜像到 watermill 元数据的键.
const (
	MetaTopic      = "topic"
	MetaTraceID    = "trace_id"
	MetaProducer   = "producer"
	MetaOccurredAt = "occurred_at"
	MetaVersion    = "version"
)

// HeaderOption 修改事件头.
type HeaderOption func(*EventHeader)

// WithTraceID 记录发起请求的 trace ID.
func WithTraceID(id string) HeaderOption { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 记录生产者服务名.
func WithProducer(p string) HeaderOption { return func(h *EventHeader) { h.Producer = p } }

func newHeader(topic string, opts []HeaderOption) EventHeader {
	h := EventHeader{Topic: topic, OccurredAt: time.Now().UTC(), Version: PayloadVersionV1}
	for _, opt := range opts {
		opt(&h)
	}

	return h
}

// newMessage 把负载封入信封并生成以 ULID 为 ID 的 watermill 消息.
func newMessage[T any](topic string, payload T, opts []HeaderOption) (*message.Message, error) {
	env := Message[T]{Header: newHeader(topic, opts), Payload: payload}

	data, err := sonic.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", topic, err)
	}

	id := ulid.MustNew(ulid.Timestamp(env.Header.OccurredAt), rand.Reader)
	msg := message.NewMessage(id.String(), data)

	meta := map[string]string{
		MetaTopic:      topic,
		MetaTraceID:    env.Header.TraceID,
		MetaProducer:   env.Header.Producer,
		MetaOccurredAt: env.Header.OccurredAt.Format(time.RFC3339Nano),
		MetaVersion:    env.Header.Version,
	}
	for k, v := range meta {
		if v != "" {
			msg.Metadata.Set(k, v)
		}
	}

	return msg, nil
}

// Parse 把消息解码为指定负载的信封.
func Parse[T any](msg *message.Message) (Message[T], error) {
	var env Message[T]
	if err := sonic.Unmarshal(msg.Payload, &env); err != nil {
		return env, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}

	return env, nil
}

// Peek 只解出信封头，负载保持原始 JSON.
func Peek(msg *message.Message) (EventHeader, json.RawMessage, error) {
	env, err := Parse[json.RawMessage](msg)

	return env.Header, env.Payload, err
}
