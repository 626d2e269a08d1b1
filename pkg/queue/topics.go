package queue

// 主题命名规范：pv.<域>.<动作>[.<状态>].
const (
	// TopicPaperCreated 记录已写入数据库，文件已在对象存储中可公开读取.
	TopicPaperCreated = "pv.paper.created"
	// TopicPaperDeleted 记录已删除，对象留给清理任务.
	TopicPaperDeleted = "pv.paper.deleted"
	// TopicObjectOrphanRemoved 清理任务删除了无记录引用的对象.
	TopicObjectOrphanRemoved = "pv.object.orphan.removed"
)

// PaperTopics 论文领域全部主题.
var PaperTopics = []string{TopicPaperCreated, TopicPaperDeleted, TopicObjectOrphanRemoved}
