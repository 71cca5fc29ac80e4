// Package recserve 是一个推荐服务，提供两条链路：
//
//   - 预计算：启动时把 personal / default 两张推荐表（parquet/csv，经 DuckDB 读取）加载到内存，
//     按 user_id 查表，未命中时用 default 表兜底（见 table 包）。
//   - 在线：读取用户最近的交互事件，并发查询每个事件的相似物品，按分数排序、去重、截断
//     （见 recall、rerank、recommend 包）。
//
// 在线链路由 pipeline.Node 串联：
//
//	recall.similar_fanout -> [filter] -> rerank.score_sort -> rerank.dedup -> rerank.topn
//
// HTTP 入口见 server 包，进程入口见 cmd/recserve。
package recserve
