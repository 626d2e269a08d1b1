package mq

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/papervault/pkg/configs"
)

// DefaultChannelBufferSize 默认通道缓冲区大小.
const DefaultChannelBufferSize = 100

// RedisPublisher Redis Pub/Sub 发布端.
type RedisPublisher struct {
	client *redis.Client
}

// RedisSubscriber Redis Pub/Sub 订阅端.
type RedisSubscriber struct {
	client  *redis.Client
	logger  watermill.LoggerAdapter
	mu      sync.Mutex
	subs    []*redis.PubSub
	closed  bool
	closeCh chan struct{}
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

// redisFactory 创建 Redis Publisher & Subscriber，二者共享同一个客户端.
func redisFactory(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (*Backend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &Backend{
		Publisher:  &RedisPublisher{client: rdb},
		Subscriber: &RedisSubscriber{client: rdb, logger: logger, closeCh: make(chan struct{})},
		Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
		Release: rdb.Close,
	}, nil
}

// Publish 实现 Publisher 接口，消息 UUID 不随 Pub/Sub 传递.
func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		ctx := msg.Context()
		if err := p.client.Publish(ctx, topic, msg.Payload).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Close 客户端由 Backend.Release 关闭.
func (p *RedisPublisher) Close() error {
	return nil
}

// Subscribe 实现 Subscriber 接口.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *message.Message, DefaultChannelBufferSize)
	if s.closed {
		close(ch)
		return ch, nil
	}

	ps := s.client.Subscribe(ctx, topic)
	s.subs = append(s.subs, ps)

	go func() {
		defer close(ch)

		for {
			m, err := ps.ReceiveMessage(ctx)
			if err != nil {
				select {
				case <-s.closeCh:
				case <-ctx.Done():
				default:
					s.logger.Error("redis receive failed", err, watermill.LogFields{"topic": topic})
				}

				return
			}

			wm := message.NewMessage(watermill.NewUUID(), []byte(m.Payload))

			select {
			case ch <- wm:
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close 实现 Subscriber 接口.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	close(s.closeCh)

	for _, ps := range s.subs {
		if err := ps.Close(); err != nil {
			s.logger.Error("close redis subscription", err, nil)
		}
	}

	return nil
}
