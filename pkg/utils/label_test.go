package utils

import "testing"

func TestMergeLabel(t *testing.T) {
	tests := []struct {
		name     string
		existing Label
		incoming Label
		want     Label
	}{
		{name: "empty existing", existing: Label{}, incoming: Label{Value: "1", Source: "recall"}, want: Label{Value: "1", Source: "recall"}},
		{name: "empty incoming", existing: Label{Value: "1", Source: "recall"}, incoming: Label{}, want: Label{Value: "1", Source: "recall"}},
		{name: "accumulate", existing: Label{Value: "1", Source: "recall"}, incoming: Label{Value: "2", Source: "recall"}, want: Label{Value: "1|2", Source: "recall"}},
		{name: "same value kept once", existing: Label{Value: "1|2", Source: "recall"}, incoming: Label{Value: "2", Source: "recall"}, want: Label{Value: "1|2", Source: "recall"}},
		{name: "different source", existing: Label{Value: "a", Source: "recall"}, incoming: Label{Value: "b", Source: "rerank"}, want: Label{Value: "a|b", Source: "recall,rerank"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeLabel(tt.existing, tt.incoming); got != tt.want {
				t.Errorf("MergeLabel = %+v, want %+v", got, tt.want)
			}
		})
	}
}
