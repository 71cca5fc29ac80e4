package rerank

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/pkg/utils"
)

func TestDedupIDs(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		want []int64
	}{
		{name: "nil", in: nil, want: []int64{}},
		{name: "no duplicates", in: []int64{3, 1, 2}, want: []int64{3, 1, 2}},
		{name: "keeps first occurrence", in: []int64{1, 2, 1, 3, 2}, want: []int64{1, 2, 3}},
		{name: "all same", in: []int64{7, 7, 7}, want: []int64{7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupIDs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DedupIDs(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDedupIDs_Properties(t *testing.T) {
	inputs := [][]string{
		{},
		{"a"},
		{"b", "a", "b", "c", "a", "a"},
		{"x", "y", "z", "x", "y", "z", "x"},
	}
	for _, in := range inputs {
		once := DedupIDs(in)
		twice := DedupIDs(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("不满足幂等: %v -> %v -> %v", in, once, twice)
		}
		if len(once) > len(in) {
			t.Errorf("输出长度不应大于输入: %v -> %v", in, once)
		}
		seen := map[string]bool{}
		for _, id := range once {
			if seen[id] {
				t.Errorf("输出存在重复: %v", once)
			}
			seen[id] = true
		}
		// 保留首次出现顺序：once 是 in 的子序列
		j := 0
		for _, id := range in {
			if j < len(once) && once[j] == id {
				j++
			}
		}
		if j != len(once) {
			t.Errorf("输出不是输入的子序列: %v -> %v", in, once)
		}
	}
}

func items(pairs ...any) []*core.Item {
	out := make([]*core.Item, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		it := core.NewItem(pairs[i].(int64))
		it.Score = pairs[i+1].(float64)
		out = append(out, it)
	}
	return out
}

func TestScoreSortNode_Stable(t *testing.T) {
	in := items(int64(1), 0.5, int64(2), 0.9, int64(3), 0.5, int64(4), 0.9, int64(5), 0.1)
	out, err := (&ScoreSortNode{}).Process(context.Background(), nil, in)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{2, 4, 1, 3, 5}
	if got := core.IDs(out); !reflect.DeepEqual(got, want) {
		t.Errorf("排序结果 %v, want %v", got, want)
	}
	if in[0].ID != 1 {
		t.Error("不应修改输入切片")
	}
}

func TestDedupNode_KeepsHighestAfterSort(t *testing.T) {
	ctx := context.Background()
	// e1: A=0.9 B=0.5; e2: B=0.8 C=0.3
	const a, b, c = int64(1), int64(2), int64(3)
	in := items(a, 0.9, b, 0.5, b, 0.8, c, 0.3)

	sorted, _ := (&ScoreSortNode{}).Process(ctx, nil, in)
	out, _ := (&DedupNode{}).Process(ctx, nil, sorted)
	if got := core.IDs(out); !reflect.DeepEqual(got, []int64{a, b, c}) {
		t.Fatalf("去重结果 %v", got)
	}
	if out[1].Score != 0.8 {
		t.Errorf("B 应保留 0.8 那一次，实际 %v", out[1].Score)
	}
}

func TestDedupNode_MergesLabels(t *testing.T) {
	mk := func(id int64, event string) *core.Item {
		it := core.NewItem(id)
		it.PutLabel("event_item", utils.Label{Value: event, Source: "recall"})
		return it
	}
	in := []*core.Item{mk(2, "10"), nil, mk(3, "10"), mk(2, "11")}

	out, err := (&DedupNode{}).Process(context.Background(), nil, in)
	if err != nil {
		t.Fatal(err)
	}
	if got := core.IDs(out); !reflect.DeepEqual(got, []int64{2, 3}) {
		t.Fatalf("去重结果 %v", got)
	}
	if lbl := out[0].Labels["event_item"]; lbl.Value != "10|11" {
		t.Errorf("重复项的来源事件应合并到保留项，实际 %+v", lbl)
	}
	if lbl := out[1].Labels["event_item"]; lbl.Value != "10" {
		t.Errorf("未重复的物品 label 不应变化，实际 %+v", lbl)
	}
}

func TestTopNNode(t *testing.T) {
	in := items(int64(1), 0.0, int64(2), 0.0, int64(3), 0.0)
	tests := []struct {
		name string
		n    int
		k    int
		want []int64
	}{
		{name: "fixed n", n: 2, k: 100, want: []int64{1, 2}},
		{name: "uses rctx.K", n: 0, k: 1, want: []int64{1}},
		{name: "k larger than items", n: 0, k: 10, want: []int64{1, 2, 3}},
		{name: "k zero", n: 0, k: 0, want: []int64{}},
		{name: "negative n", n: -1, k: 10, want: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := (&TopNNode{N: tt.n}).Process(context.Background(), &core.RecommendContext{K: tt.k}, in)
			if err != nil {
				t.Fatal(err)
			}
			if got := core.IDs(out); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
