// Package conv 提供配置 map（YAML/JSON 解析结果）的取值与类型转换工具。
package conv

// ToInt64 将 any 转为 int64。YAML 常得到 int，JSON 常得到 float64。
func ToInt64(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	case int32:
		return int64(val), true
	case float64:
		return int64(val), true
	case float32:
		return int64(val), true
	default:
		return 0, false
	}
}

// ConfigGet 从 map[string]any 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt64 从 config 取 int64，兼容 int / float64。
func ConfigGetInt64(m map[string]any, key string, defaultVal int64) int64 {
	if m == nil {
		return defaultVal
	}
	if n, ok := ToInt64(m[key]); ok {
		return n
	}
	return defaultVal
}

// SliceAnyToInt64 把 []any（YAML/JSON 解码结果）转换为 []int64，跳过无法转换的元素。
// v 本身不是切片时返回 nil。
func SliceAnyToInt64(v any) []int64 {
	switch s := v.(type) {
	case []int64:
		return s
	case []any:
		out := make([]int64, 0, len(s))
		for _, x := range s {
			if n, ok := ToInt64(x); ok {
				out = append(out, n)
			}
		}
		return out
	default:
		return nil
	}
}
