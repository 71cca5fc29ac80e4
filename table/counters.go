package table

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// 计数器名称，出现在 Stats 日志中
const (
	StatPersonal = "request_personal_count"
	StatDefault  = "request_default_count"
)

// Counters 记录预计算链路的请求来源：personal 命中 / default 兜底。
// 由 Store 持有，可并发递增。
//
// Counters 同时实现 prometheus.Collector，注册后在 /metrics 中暴露为
// recserve_requests_served_total{source="personal|default"}。
type Counters struct {
	personal atomic.Int64
	def      atomic.Int64
}

// Snapshot 是计数器的某一时刻取值。
type Snapshot struct {
	Personal int64
	Default  int64
}

func (c *Counters) IncPersonal() { c.personal.Add(1) }
func (c *Counters) IncDefault()  { c.def.Add(1) }

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Personal: c.personal.Load(),
		Default:  c.def.Load(),
	}
}

var servedDesc = prometheus.NewDesc(
	"recserve_requests_served_total",
	"Precomputed recommendation requests by data source",
	[]string{"source"}, nil,
)

func (c *Counters) Describe(ch chan<- *prometheus.Desc) {
	ch <- servedDesc
}

func (c *Counters) Collect(ch chan<- prometheus.Metric) {
	snap := c.Snapshot()
	ch <- prometheus.MustNewConstMetric(servedDesc, prometheus.CounterValue, float64(snap.Personal), string(KindPersonal))
	ch <- prometheus.MustNewConstMetric(servedDesc, prometheus.CounterValue, float64(snap.Default), string(KindDefault))
}

var _ prometheus.Collector = (*Counters)(nil)
