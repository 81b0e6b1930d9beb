// Package registry 维护单进程内会话到活跃连接的映射
package registry

import (
	"sync"

	"github.com/patipanbank/MFULearnAi/pkg/logger"
)

// Conn 可以接收下发负载的连接
type Conn interface {
	Send(payload []byte) error
}

// Registry 会话注册表
// 只覆盖本网关进程；跨进程分发由 Bus Relay 完成
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{}
}

// New 创建注册表
func New() *Registry {
	return &Registry{
		rooms: make(map[string]map[Conn]struct{}),
	}
}

// Connect 将连接注册到会话，重复注册为幂等操作
func (r *Registry) Connect(chatID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.rooms[chatID]
	if !ok {
		conns = make(map[Conn]struct{})
		r.rooms[chatID] = conns
	}
	conns[conn] = struct{}{}
}

// Disconnect 将连接从会话移除，空会话条目整体删除
func (r *Registry) Disconnect(chatID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.rooms[chatID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(r.rooms, chatID)
	}
}

// Broadcast 将负载下发给会话内的所有连接
// 单个连接发送失败视为死连接并移除，不影响其余连接
func (r *Registry) Broadcast(chatID string, payload []byte) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.rooms[chatID]))
	for conn := range r.rooms[chatID] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	if len(conns) == 0 {
		return
	}

	var dead []Conn
	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			logger.Warnf("registry: dropping dead connection in chat %s: %v", chatID, err)
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		r.Disconnect(chatID, conn)
	}
}

// ConnectionCount 返回会话内的连接数
func (r *Registry) ConnectionCount(chatID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[chatID])
}

// RoomCount 返回有活跃连接的会话数
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
