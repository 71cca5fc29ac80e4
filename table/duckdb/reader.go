// Package duckdb 通过嵌入式 DuckDB 读取推荐表文件（parquet / csv）。
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/rushteam/recserve/table"
)

// Reader 实现 table.Reader。
// 使用进程内的内存 DuckDB；DuckDB 默认 preserve_insertion_order=true，行顺序与文件一致。
type Reader struct {
	db *sql.DB
}

// Open 打开内存 DuckDB 连接。
func Open(ctx context.Context) (*Reader, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &Reader{db: db}, nil
}

// Read 读取 path 指定的表文件，只取 columns 中的列。
// .csv / .tsv 使用 read_csv_auto，其余按 parquet 处理。
func (r *Reader) Read(ctx context.Context, path string, columns []string) ([]table.Row, error) {
	query, err := buildQuery(path, columns)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	defer rows.Close()

	var out []table.Row
	vals := make([]int64, len(columns))
	dest := make([]any, len(columns))
	for i := range vals {
		dest[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s row %d: %w", path, len(out), err)
		}
		var row table.Row
		for i, col := range columns {
			switch col {
			case table.ColumnUserID:
				row.UserID = vals[i]
			case table.ColumnItemID:
				row.ItemID = vals[i]
			case table.ColumnRank:
				row.Rank = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

func (r *Reader) Close() error {
	return r.db.Close()
}

func buildQuery(path string, columns []string) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("no columns requested for %s", path)
	}

	selects := make([]string, 0, len(columns))
	for _, col := range columns {
		switch col {
		case table.ColumnUserID, table.ColumnItemID, table.ColumnRank:
			selects = append(selects, fmt.Sprintf(`CAST(%q AS BIGINT)`, col))
		default:
			return "", fmt.Errorf("unsupported column %q", col)
		}
	}

	fn := "read_parquet"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		fn = "read_csv_auto"
	}

	return fmt.Sprintf("SELECT %s FROM %s(%s)",
		strings.Join(selects, ", "), fn, quoteLiteral(path)), nil
}

// quoteLiteral 生成 SQL 字符串字面量
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var _ table.Reader = (*Reader)(nil)
