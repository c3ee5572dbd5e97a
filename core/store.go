package core

import "context"

// Store 是 KV 存储的领域接口。
//
// 使用场景：
//   - 商户规则快照：merchant_rules:<merchantID> -> JSON
//   - 交互埋点：按列表追加（见 ListStore）
//
// 实现：
//   - store.MemoryStore（测试/开发）
//   - store.RedisStore（生产）
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值，不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位秒
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// BatchGet 批量读取，不存在的 key 不出现在结果中
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// Close 关闭连接/释放资源
	Close() error
}

// ListStore 在 Store 之上支持列表追加，用于异步埋点落盘。
type ListStore interface {
	Store

	// RPush 向列表尾部追加
	RPush(ctx context.Context, key string, values ...[]byte) error

	// LRange 读取列表区间 [start, stop]，stop 为 -1 表示到末尾
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	de := GetDomainError(err)
	return de != nil && de.Module == ModuleStore && de.Code == ErrorCodeNotFound
}
