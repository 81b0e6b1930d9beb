// Package stream 定义生成流事件与分块归一化
package stream

import "encoding/json"

// EventType 流事件类型
type EventType string

const (
	// EventChunk 文本分块
	EventChunk EventType = "chunk"
	// EventToolStart 工具调用开始
	EventToolStart EventType = "tool_start"
	// EventToolResult 工具调用结果
	EventToolResult EventType = "tool_result"
	// EventToolError 工具调用错误
	EventToolError EventType = "tool_error"
	// EventEnd 生成结束
	EventEnd EventType = "end"
	// EventError 生成错误
	EventError EventType = "error"
)

// Event 生成器产出的单个流事件
// 每个任务的事件序列恰好被一个 Worker 按序消费一次
type Event struct {
	Type EventType
	Data interface{}
}

// Usage token 用量统计
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Frame 下发到客户端的 JSON 帧
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Encode 序列化为 JSON 字节
func (f Frame) Encode() []byte {
	b, err := json.Marshal(f)
	if err != nil {
		// Frame 只携带可序列化数据，失败时降级为错误帧
		b, _ = json.Marshal(Frame{Type: string(EventError), Data: "failed to encode frame"})
	}
	return b
}

// ToolPayload 工具事件的数据体
type ToolPayload struct {
	ToolName  string      `json:"tool_name"`
	ToolInput interface{} `json:"tool_input,omitempty"`
	Output    string      `json:"output,omitempty"`
	Error     string      `json:"error,omitempty"`
}
