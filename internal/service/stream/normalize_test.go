// Package stream 提供分块归一化单元测试
package stream

import "testing"

func TestNormalizeChunkString(t *testing.T) {
	got := NormalizeChunk("hello world")
	if got != "hello world" {
		t.Errorf("Expected 'hello world', got %q", got)
	}
}

func TestNormalizeChunkList(t *testing.T) {
	tests := []struct {
		name  string
		input []interface{}
		want  string
	}{
		{
			name:  "string elements",
			input: []interface{}{"foo", "bar"},
			want:  "foobar",
		},
		{
			name: "keyed maps",
			input: []interface{}{
				map[string]interface{}{"text": "a"},
				map[string]interface{}{"content": "b"},
				map[string]interface{}{"value": "c"},
			},
			want: "abc",
		},
		{
			name:  "mixed elements",
			input: []interface{}{"x", map[string]interface{}{"text": "y"}, float64(1)},
			want:  "xy1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeChunk(tt.input)
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNormalizeChunkMap(t *testing.T) {
	got := NormalizeChunk(map[string]interface{}{"text": "hello"})
	if got != "hello" {
		t.Errorf("Expected 'hello', got %q", got)
	}

	// text 优先于 content
	got = NormalizeChunk(map[string]interface{}{"content": "second", "text": "first"})
	if got != "first" {
		t.Errorf("Expected 'first', got %q", got)
	}
}

func TestNormalizeChunkOutputList(t *testing.T) {
	input := map[string]interface{}{
		"output": []interface{}{
			map[string]interface{}{"text": "a"},
			map[string]interface{}{"text": "b"},
		},
	}
	got := NormalizeChunk(input)
	if got != "a b" {
		t.Errorf("Expected 'a b', got %q", got)
	}
}

func TestNormalizeChunkUnusableMap(t *testing.T) {
	got := NormalizeChunk(map[string]interface{}{"unknown": 42})
	if got != unsupportedPlaceholder {
		t.Errorf("Expected placeholder, got %q", got)
	}
}

func TestNormalizeChunkJSONReparse(t *testing.T) {
	// 字符串化后形似 JSON 对象的值，应重新解析并按映射规则提取
	got := NormalizeChunk(jsonLike(`{"text":"reparsed"}`))
	if got != "reparsed" {
		t.Errorf("Expected 'reparsed', got %q", got)
	}
}

// jsonLike 的 String() 产出 JSON 对象文本
type jsonLike string

func (j jsonLike) String() string { return string(j) }

func TestNormalizeChunkIdempotent(t *testing.T) {
	inputs := []interface{}{
		"plain text",
		[]interface{}{
			map[string]interface{}{"text": "a"},
			map[string]interface{}{"content": "b"},
		},
		map[string]interface{}{
			"output": []interface{}{
				map[string]interface{}{"text": "a"},
				map[string]interface{}{"text": "b"},
			},
		},
	}

	for _, input := range inputs {
		once := NormalizeChunk(input)
		twice := NormalizeChunk(once)
		if once != twice {
			t.Errorf("Normalize not idempotent: %q != %q", once, twice)
		}
	}
}
