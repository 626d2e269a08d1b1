// Package mq 提供基于 Watermill 的统一消息队列操作接口.
// 通过工厂模式抽象不同的 MQ 实现，论文领域事件经由它发布.
//
// 支持的 MQ 类型：
//   - nats（可选 JetStream）
//   - redis（Pub/Sub）
//   - memory（watermill gochannel，进程内）
//
// 使用示例：
//
//	client, err := mq.New(ctx, &cfg.MQ)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	msg := message.NewMessage(watermill.NewUUID(), payload)
//	err = client.Publish(ctx, "pv.paper.created", msg)
package mq

import (
	"context"
	"errors"
	"fmt"
	"sort"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/papervault/pkg/configs"
	nlog "github.com/yeisme/papervault/pkg/log"
)

// Backend 工厂创建的发布端、订阅端与连通性探测.
type Backend struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	// Ping 为空表示后端无需探测
	Ping func(ctx context.Context) error
	// Release 关闭工厂额外持有的连接
	Release func() error
}

// Factory 定义创建 Backend 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (*Backend, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 返回已注册的 MQ 类型列表.
func GetRegisteredMQTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 封装 watermill Publisher 与 Subscriber.
type Client struct {
	kind    configs.MQType
	backend *Backend
	router  *message.Router
}

// Publish 便捷发布.
func (c *Client) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.backend == nil || c.backend.Publisher == nil {
		return errors.New("mq publisher not initialized")
	}

	return c.backend.Publisher.Publish(topic, msgs...)
}

// Subscribe 便捷订阅.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.backend == nil || c.backend.Subscriber == nil {
		return nil, errors.New("mq subscriber not initialized")
	}

	return c.backend.Subscriber.Subscribe(ctx, topic)
}

// Type 返回 MQ 类型.
func (c *Client) Type() configs.MQType {
	return c.kind
}

// HealthCheck 探测后端连通性.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c == nil || c.backend == nil {
		return errors.New("mq not initialized")
	}

	if c.backend.Ping == nil {
		return nil
	}

	return c.backend.Ping(ctx)
}

// Close 关闭资源.
func (c *Client) Close() error {
	if c == nil || c.backend == nil {
		return nil
	}

	var errList []error

	if c.router != nil {
		errList = append(errList, c.router.Close())
	}

	if c.backend.Publisher != nil {
		errList = append(errList, c.backend.Publisher.Close())
	}

	if c.backend.Subscriber != nil {
		errList = append(errList, c.backend.Subscriber.Close())
	}

	if c.backend.Release != nil {
		errList = append(errList, c.backend.Release())
	}

	return errors.Join(errList...)
}

// New 按配置初始化消息队列. metrics 为 true 时用 prometheus 默认注册表装饰发布端与订阅端.
func New(ctx context.Context, cfg *configs.MQConfig, withMetrics bool) (*Client, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	logger := &zerologAdapter{l: nlog.Logger()}

	backend, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	client := &Client{kind: cfg.Type, backend: backend}

	if withMetrics && cfg.Common.EnableMetrics {
		if err := client.instrument(ctx, logger); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	nlog.Logger().Info().Str("type", string(cfg.Type)).Msg("mq client initialized")

	return client, nil
}

func (c *Client) instrument(ctx context.Context, logger watermill.LoggerAdapter) error {
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	builder := metrics.NewPrometheusMetricsBuilder(prometheus.DefaultRegisterer, configs.AppName, "mq")
	builder.AddPrometheusRouterMetrics(router)

	pub, err := builder.DecoratePublisher(c.backend.Publisher)
	if err != nil {
		return fmt.Errorf("decorate publisher with metrics: %w", err)
	}

	sub, err := builder.DecorateSubscriber(c.backend.Subscriber)
	if err != nil {
		return fmt.Errorf("decorate subscriber with metrics: %w", err)
	}

	c.backend.Publisher, c.backend.Subscriber, c.router = pub, sub, router

	go func() {
		if runErr := router.Run(ctx); runErr != nil {
			nlog.Logger().Error().Err(runErr).Msg("mq router stopped")
		}
	}()

	return nil
}
