// Package store 提供 core.Store / core.ListStore 的实现：
//   - MemoryStore：测试/开发/CLI 演示
//   - RedisStore：生产（规则快照 + 埋点列表）
//
// 示例：
//
//	var s core.ListStore = store.NewMemoryStore()
package store

import "github.com/rushteam/shoprank/core"

// ErrNotFound 是 core.ErrStoreNotFound 的别名，便于包内使用。
var ErrNotFound = core.ErrStoreNotFound
