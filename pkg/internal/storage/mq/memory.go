package mq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/papervault/pkg/configs"
)

func init() {
	RegisterFactory(configs.MQTypeMemory, memoryFactory)
}

// memoryFactory 创建进程内 gochannel 发布订阅，发布端与订阅端共享同一实例.
func memoryFactory(_ context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (*Backend, error) {
	buf := int64(cfg.Common.BufferSize)
	if buf <= 0 {
		buf = DefaultChannelBufferSize
	}

	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buf}, logger)

	return &Backend{Publisher: ps, Subscriber: noopCloseSubscriber{ps}}, nil
}

// noopCloseSubscriber 防止同一个 gochannel 被关闭两次.
type noopCloseSubscriber struct {
	*gochannel.GoChannel
}

func (noopCloseSubscriber) Close() error { return nil }
