package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪 ID，来自请求的 span.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，T 为主题对应的负载.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// ObjectRef 标识对象存储中的 PDF.
type ObjectRef struct {
	ObjectKey   string `json:"object_key"`
	URL         string `json:"url,omitempty"`
	ETag        string `json:"etag,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// PaperCreatedPayload 新论文入库.
type PaperCreatedPayload struct {
	PaperID  string    `json:"paper_id"`
	Title    string    `json:"title"`
	Authors  []string  `json:"authors"`
	Year     *int      `json:"year,omitempty"`
	Object   ObjectRef `json:"object"`
	Created  time.Time `json:"created_at"`
	FileName string    `json:"file_name,omitempty"`
}

// PaperDeletedPayload 论文记录删除.
type PaperDeletedPayload struct {
	PaperID string    `json:"paper_id"`
	Object  ObjectRef `json:"object"`
}

// OrphanRemovedPayload 清理任务删除的孤儿对象.
type OrphanRemovedPayload struct {
	Object       ObjectRef `json:"object"`
	LastModified time.Time `json:"last_modified"`
}
