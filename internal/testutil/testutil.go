// Package testutil 提供测试辅助工具
package testutil

import (
	"strings"
	"testing"

	"github.com/patipanbank/MFULearnAi/internal/model"
	"github.com/patipanbank/MFULearnAi/internal/service/queue"
)

// AssertHelper 提供断言相关的测试辅助
type AssertHelper struct {
	t *testing.T
}

// NewAssertHelper 创建断言辅助器
func NewAssertHelper(t *testing.T) *AssertHelper {
	return &AssertHelper{t: t}
}

// NoError 断言没有错误
func (h *AssertHelper) NoError(err error) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("Unexpected error: %v", err)
	}
}

// Error 断言有错误
func (h *AssertHelper) Error(err error) {
	h.t.Helper()
	if err == nil {
		h.t.Fatal("Expected error, got nil")
	}
}

// ErrorContains 断言错误包含指定字符串
func (h *AssertHelper) ErrorContains(err error, substr string) {
	h.t.Helper()
	if err == nil {
		h.t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), substr) {
		h.t.Fatalf("Error %q does not contain %q", err.Error(), substr)
	}
}

// Equal 断言相等
func (h *AssertHelper) Equal(expected, actual interface{}) {
	h.t.Helper()
	if expected != actual {
		h.t.Fatalf("Expected %v, got %v", expected, actual)
	}
}

// NewTestChat 构造测试会话
func NewTestChat(id, userID string) *model.Chat {
	return &model.Chat{
		ID:          id,
		UserID:      userID,
		Name:        "Test Chat",
		ModelID:     "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   4000,
	}
}

// NewTestJob 构造测试生成任务
func NewTestJob(chatID, userID, message string) *queue.Job {
	return &queue.Job{
		SessionID:   chatID,
		UserID:      userID,
		Message:     message,
		ModelID:     "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   4000,
	}
}
