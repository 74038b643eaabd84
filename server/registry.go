package server

import (
	"github.com/sasha-s/go-deadlock"
)

// Sender 能向客户端推送消息的一端（会话或测试替身）
type Sender interface {
	Send(t MessageType, payload any) error
	// SendEncoded 推送已编码好的信封，广播时只编码一次
	SendEncoded(envelope []byte) error
}

// ConnRef 房间/场景记录中保存的非拥有连接引用。
// Resolve 失败表示对端已离开，属于正常情况，调用方直接跳过。
type ConnRef interface {
	Resolve() (Sender, bool)
}

// Registry 已登录会话表：player_id → Session
type Registry struct {
	mu       deadlock.RWMutex
	sessions map[uint32]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint32]*Session)}
}

func (r *Registry) Register(playerID uint32, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[playerID] = s
}

// Unregister 仅在表中仍是同一会话时移除
func (r *Registry) Unregister(playerID uint32, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[playerID]; ok && cur == s {
		delete(r.sessions, playerID)
	}
}

func (r *Registry) Lookup(playerID uint32) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[playerID]
	return s, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Ref 返回按 player_id 查找的弱引用
func (r *Registry) Ref(playerID uint32) ConnRef {
	return registryRef{registry: r, playerID: playerID}
}

type registryRef struct {
	registry *Registry
	playerID uint32
}

func (ref registryRef) Resolve() (Sender, bool) {
	s, ok := ref.registry.Lookup(ref.playerID)
	if !ok || s.Closed() {
		return nil, false
	}
	return s, true
}

// broadcast 编码一次后推送给所有仍然在线的目标，返回实际送达数
func broadcast(targets []ConnRef, t MessageType, payload any) int {
	if len(targets) == 0 {
		return 0
	}
	b, err := EncodeEnvelope(t, payload)
	if err != nil {
		Log.Errorf("broadcast encode %s: %v", t, err)
		return 0
	}
	sent := 0
	for _, ref := range targets {
		if ref == nil {
			continue
		}
		s, ok := ref.Resolve()
		if !ok {
			continue
		}
		if err := s.SendEncoded(b); err != nil {
			Log.Debugf("broadcast %s skipped target: %v", t, err)
			continue
		}
		sent++
	}
	return sent
}
