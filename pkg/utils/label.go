package utils

import "strings"

// Label 记录候选物品或请求的来源信息，例如 recall_source=similar、event_item=42。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / filter / rerank
}

// MergeLabel 合并同一个 key 的两个 Label，用于去重时保留被丢弃重复项的来源：
//   - Value 以 '|' 累积，已出现过的值不重复追加
//   - Source 不同时以 ',' 连接
func MergeLabel(existing, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" || containsPart(existing.Value, incoming.Value, "|") {
		return existing
	}

	merged := Label{Value: existing.Value + "|" + incoming.Value, Source: existing.Source}
	if incoming.Source != "" && !containsPart(existing.Source, incoming.Source, ",") {
		if merged.Source == "" {
			merged.Source = incoming.Source
		} else {
			merged.Source += "," + incoming.Source
		}
	}
	return merged
}

func containsPart(joined, part, sep string) bool {
	for _, p := range strings.Split(joined, sep) {
		if p == part {
			return true
		}
	}
	return false
}
