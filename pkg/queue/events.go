package queue

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/papervault/pkg/configs"
)

// Publisher 发布 watermill 消息，mq.Client 满足该接口.
type Publisher interface {
	Publish(ctx context.Context, topic string, msgs ...*message.Message) error
}

// Emitter 按事件开关发布论文领域事件. pub 为空或总开关关闭时全部为空操作.
type Emitter struct {
	pub Publisher
	cfg configs.EventsConfig
}

// NewEmitter 创建事件发布器.
func NewEmitter(pub Publisher, cfg configs.EventsConfig) *Emitter {
	return &Emitter{pub: pub, cfg: cfg}
}

// Enabled 报告事件是否会真正发布.
func (e *Emitter) Enabled() bool {
	return e != nil && e.pub != nil && e.cfg.Enabled
}

func publish[T any](ctx context.Context, e *Emitter, on bool, topic string, payload T, opts ...HeaderOption) error {
	if !e.Enabled() || !on {
		return nil
	}

	opts = append([]HeaderOption{WithProducer(configs.AppName)}, opts...)

	msg, err := newMessage(topic, payload, opts)
	if err != nil {
		return err
	}

	msg.SetContext(ctx)

	return e.pub.Publish(ctx, topic, msg)
}

// PaperCreated 发布 pv.paper.created.
func (e *Emitter) PaperCreated(ctx context.Context, p PaperCreatedPayload, opts ...HeaderOption) error {
	return publish(ctx, e, e != nil && e.cfg.Paper.Created, TopicPaperCreated, p, opts...)
}

// PaperDeleted 发布 pv.paper.deleted.
func (e *Emitter) PaperDeleted(ctx context.Context, p PaperDeletedPayload, opts ...HeaderOption) error {
	return publish(ctx, e, e != nil && e.cfg.Paper.Deleted, TopicPaperDeleted, p, opts...)
}

// OrphanRemoved 发布 pv.object.orphan.removed.
func (e *Emitter) OrphanRemoved(ctx context.Context, p OrphanRemovedPayload, opts ...HeaderOption) error {
	return publish(ctx, e, e != nil && e.cfg.Paper.OrphanRemoved, TopicObjectOrphanRemoved, p, opts...)
}

// ParsePaperCreated 将消息解析为 pv.paper.created 信封.
func ParsePaperCreated(msg *message.Message) (Message[PaperCreatedPayload], error) {
	return Parse[PaperCreatedPayload](msg)
}

// ParsePaperDeleted 将消息解析为 pv.paper.deleted 信封.
func ParsePaperDeleted(msg *message.Message) (Message[PaperDeletedPayload], error) {
	return Parse[PaperDeletedPayload](msg)
}

// ParseOrphanRemoved 将消息解析为 pv.object.orphan.removed 信封.
func ParseOrphanRemoved(msg *message.Message) (Message[OrphanRemovedPayload], error) {
	return Parse[OrphanRemovedPayload](msg)
}
