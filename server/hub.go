package server

import (
	"sync/atomic"
	"time"
)

// Hub 进程内唯一的服务集合：一个房间管理器、一个场景管理器、一张会话表。
// 启动时构造一次，以引用方式注入到每个会话。
type Hub struct {
	cfg      Config
	Rooms    *RoomManager
	Scenes   *SceneManager
	Sessions *Registry
	Metrics  *Metrics

	nextPlayerID atomic.Uint32
	connections  atomic.Int64
}

func NewHub(cfg Config) *Hub {
	metrics := &Metrics{}
	return &Hub{
		cfg:      cfg,
		Rooms:    NewRoomManager(cfg.MaxPlayersPerRoom),
		Scenes:   NewSceneManager(cfg.SceneConfig(), metrics),
		Sessions: NewRegistry(),
		Metrics:  metrics,
	}
}

// Config 返回启动时的配置
func (h *Hub) Config() Config { return h.cfg }

// Connections 当前存活的连接数（含未登录）
func (h *Hub) Connections() int64 { return h.connections.Load() }

// allocPlayerID 服务端分配的玩家 id，从 1 开始且不复用
func (h *Hub) allocPlayerID() uint32 { return h.nextPlayerID.Add(1) }

// NewSession 为新连接创建会话（尚未开始读写）
func (h *Hub) NewSession(t Transport) *Session {
	h.connections.Add(1)
	var timeout time.Duration
	if h.cfg.HeartbeatTimeoutSec > 0 {
		timeout = time.Duration(h.cfg.HeartbeatTimeoutSec) * time.Second
	}
	return newSession(h, t, timeout)
}

// StartGame 房主开局：锁定房间 → 创建场景 → 回复请求者 → 广播开局与全量状态 → 启动逻辑帧
func (h *Hub) StartGame(playerID uint32, requester Sender) StartGameResult {
	result, snapshot, ok := h.Rooms.StartGame(playerID)
	if !ok {
		if requester != nil {
			_ = requester.Send(MsgS2CStartGameResult, &result)
		}
		return result
	}
	return h.launchScene(result, snapshot, requester)
}

// launchScene 按快照建场景并开跑。
// 快照之后离开房间的玩家在建场景后立即摘除，场景若因此清空则不再启动逻辑帧。
func (h *Hub) launchScene(result StartGameResult, snapshot RoomSnapshot, requester Sender) StartGameResult {
	info := h.Scenes.CreateScene(snapshot)

	targets := make([]ConnRef, 0, len(snapshot.Players))
	for _, p := range snapshot.Players {
		if roomID, in := h.Rooms.PlayerRoom(p.PlayerID); !in || roomID != snapshot.RoomID {
			h.Scenes.RemovePlayer(p.PlayerID)
			Log.Infof("player %d left room %d before scene start", p.PlayerID, snapshot.RoomID)
			continue
		}
		targets = append(targets, p.Conn)
	}

	if requester != nil {
		_ = requester.Send(MsgS2CStartGameResult, &result)
	}

	full, ok := h.Scenes.BuildFullState(snapshot.RoomID)
	if !ok {
		Log.Infof("room %d emptied before scene start", snapshot.RoomID)
		return result
	}
	broadcast(targets, MsgS2CGameStart, &GameStart{Scene: info, InitialState: full})

	h.Scenes.StartGameLoop(snapshot.RoomID)
	return result
}

// RemovePlayer 玩家彻底离开：房间与场景都要摘除
func (h *Hub) RemovePlayer(playerID uint32) {
	if playerID == 0 {
		return
	}
	h.Rooms.RemovePlayer(playerID)
	h.Scenes.RemovePlayer(playerID)
}
