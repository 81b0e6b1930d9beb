package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 无法提取文本时的占位符
const unsupportedPlaceholder = "[unsupported content]"

// 按优先级尝试的文本键
var textKeys = []string{"text", "content", "value"}

// NormalizeChunk 将生成器产出的任意分块内容归一化为纯文本
// 归一化是幂等的：对已经是纯文本的输入原样返回
func NormalizeChunk(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		return normalizeList(val)
	case map[string]interface{}:
		return normalizeMap(val)
	default:
		s := fmt.Sprint(v)
		// 字符串化结果形似 JSON 对象时，重新解析一次再按映射规则处理
		if looksLikeJSONObject(s) {
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(s), &m); err == nil {
				return normalizeMap(m)
			}
		}
		return s
	}
}

// normalizeList 逐元素提取文本后拼接
func normalizeList(items []interface{}) string {
	var sb strings.Builder
	for _, item := range items {
		switch elem := item.(type) {
		case string:
			sb.WriteString(elem)
		case map[string]interface{}:
			if text, ok := firstTextKey(elem); ok {
				sb.WriteString(text)
			} else {
				sb.WriteString(fmt.Sprint(elem))
			}
		default:
			sb.WriteString(fmt.Sprint(elem))
		}
	}
	return sb.String()
}

// normalizeMap 按 text/content/value 优先级提取；
// 其次处理 output 列表；都不可用时返回占位符，从不报错
func normalizeMap(m map[string]interface{}) string {
	if text, ok := firstTextKey(m); ok {
		return text
	}

	if output, ok := m["output"].([]interface{}); ok {
		parts := make([]string, 0, len(output))
		for _, item := range output {
			if elem, ok := item.(map[string]interface{}); ok {
				if text, ok := elem["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, " ")
	}

	return unsupportedPlaceholder
}

// firstTextKey 返回第一个存在且非空的文本键的值
func firstTextKey(m map[string]interface{}) (string, bool) {
	for _, key := range textKeys {
		if text, ok := m[key].(string); ok && text != "" {
			return text, true
		}
	}
	return "", false
}

func looksLikeJSONObject(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")
}
