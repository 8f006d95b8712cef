package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gshost/internal/server/models"
	"gshost/internal/shared/utils"
)

// Session 会话结构
type Session struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	LoginTime time.Time `json:"login_time"`
	LastSeen  time.Time `json:"last_seen"`
	IPAddress string    `json:"ip_address"`
	IsActive  bool      `json:"is_active"`
}

// SessionManager 会话管理器
type SessionManager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
	timeout  time.Duration
}

// NewSessionManager 创建会话管理器
func NewSessionManager(timeout time.Duration) *SessionManager {
	sm := &SessionManager{
		sessions: make(map[string]*Session),
		timeout:  timeout,
	}

	// 启动清理过期会话的协程
	go sm.cleanupExpiredSessions()

	return sm
}

// CreateSession 创建新会话
func (sm *SessionManager) CreateSession(user *models.User, ipAddress string) (*Session, error) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sessionID, err := utils.GenerateRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("生成会话ID失败: %w", err)
	}

	now := time.Now()
	session := &Session{
		ID:        sessionID,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		LoginTime: now,
		LastSeen:  now,
		IPAddress: ipAddress,
		IsActive:  true,
	}

	sm.sessions[sessionID] = session
	return session, nil
}

// GetSession 获取会话
func (sm *SessionManager) GetSession(sessionID string) (*Session, error) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, errors.New("会话不存在")
	}

	if !session.IsActive {
		return nil, errors.New("会话已失效")
	}

	// 检查是否过期
	if time.Since(session.LastSeen) > sm.timeout {
		return nil, errors.New("会话已过期")
	}

	return session, nil
}

// UpdateSession 刷新会话活跃时间
func (sm *SessionManager) UpdateSession(sessionID string) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return errors.New("会话不存在")
	}

	session.LastSeen = time.Now()
	return nil
}

// DestroySession 销毁会话
func (sm *SessionManager) DestroySession(sessionID string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	delete(sm.sessions, sessionID)
}

// cleanupExpiredSessions 定期清理过期会话
func (sm *SessionManager) cleanupExpiredSessions() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		sm.mutex.Lock()
		now := time.Now()
		for id, session := range sm.sessions {
			if now.Sub(session.LastSeen) > sm.timeout {
				delete(sm.sessions, id)
			}
		}
		sm.mutex.Unlock()
	}
}
