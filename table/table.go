// Package table 持有预计算推荐的两张内存表（personal / default）及请求计数。
//
// 两张表在启动时各加载一次，之后只读，可被并发请求无锁共享；
// 计数器是唯一的共享写入点，使用原子操作。
package table

import (
	"context"
	"fmt"
)

// Kind 表示推荐表类型。
type Kind string

const (
	KindPersonal Kind = "personal" // 按 user_id 索引的个性化推荐
	KindDefault  Kind = "default"  // 无个性化数据时使用的默认（热门）推荐
)

// 列名
const (
	ColumnUserID = "user_id"
	ColumnItemID = "item_id"
	ColumnRank   = "rank"
)

func (k Kind) Validate() error {
	switch k {
	case KindPersonal, KindDefault:
		return nil
	default:
		return fmt.Errorf("unknown table kind %q", string(k))
	}
}

// requiredColumns 返回该类型表必须包含的列。
func (k Kind) requiredColumns() []string {
	if k == KindPersonal {
		return []string{ColumnUserID, ColumnItemID}
	}
	return []string{ColumnItemID}
}

// Row 是推荐表中的一行。默认表没有 user_id 列，UserID 为 0。
type Row struct {
	UserID int64
	ItemID int64
	Rank   int64
}

// Reader 从外部文件读取整张表，只保留 columns 中列出的列，行顺序保持文件顺序。
type Reader interface {
	Read(ctx context.Context, path string, columns []string) ([]Row, error)
}

// ReaderFunc 允许把普通函数当作 Reader 使用。
type ReaderFunc func(ctx context.Context, path string, columns []string) ([]Row, error)

func (f ReaderFunc) Read(ctx context.Context, path string, columns []string) ([]Row, error) {
	return f(ctx, path, columns)
}
