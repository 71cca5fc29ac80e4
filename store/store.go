// Package store 提供 core.Store 的实现（内存、Redis），接口定义在 core 包。
//
// 示例：
//
//	var s core.Store = store.NewMemoryStore()
//	cache := recall.NewCachedSimilarity(client, s, 300)
package store

import "github.com/rushteam/recserve/core"

// ErrNotFound 是 core.ErrStoreNotFound 的别名，方便包内使用。
var ErrNotFound = core.ErrStoreNotFound
