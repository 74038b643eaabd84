package server

import (
	"sort"

	"github.com/sasha-s/go-deadlock"
)

// 房间操作的结果文案
const (
	ReasonNotLoggedIn       = "not logged in"
	ReasonLeaveCurrentFirst = "leave your current room first"
	ReasonAlreadyInRoom     = "already in a room"
	ReasonRoomNotFound      = "room not found"
	ReasonRoomPlaying       = "room already playing"
	ReasonRoomFull          = "room full"
	ReasonNotInRoom         = "not in any room"
	ReasonNotHost           = "only the host can start the game"
	ReasonNotAllReady       = "not all players are ready"

	ResultRoomCreated  = "room created"
	ResultRoomJoined   = "joined room"
	ResultRoomLeft     = "left room"
	ResultReadyUpdated = "ready state updated"
	ResultGameStarted  = "game started"
)

// DefaultMaxPlayers 创建房间未指定人数上限时的默认值
const DefaultMaxPlayers = 4

// RoomManager 持有所有房间与 player→room 索引，所有读改写在同一把锁内完成。
// 广播在锁内生成快照，解锁后再发送。
type RoomManager struct {
	mu         deadlock.Mutex
	maxPlayers uint32
	nextRoomID uint32
	rooms      map[uint32]*Room
	playerRoom map[uint32]uint32
}

// NewRoomManager maxPlayersPerRoom 为单房间人数上限（0 表示使用 DefaultMaxPlayers）
func NewRoomManager(maxPlayersPerRoom uint32) *RoomManager {
	if maxPlayersPerRoom == 0 {
		maxPlayersPerRoom = DefaultMaxPlayers
	}
	return &RoomManager{
		maxPlayers: maxPlayersPerRoom,
		nextRoomID: 1,
		rooms:      make(map[uint32]*Room),
		playerRoom: make(map[uint32]uint32),
	}
}

// CreateRoom 创建房间并以房主身份加入
func (m *RoomManager) CreateRoom(playerID uint32, playerName string, conn ConnRef, req CreateRoomRequest) CreateRoomResult {
	if playerID == 0 {
		return CreateRoomResult{Message: ReasonNotLoggedIn}
	}

	var update roomUpdate
	var result CreateRoomResult
	{
		m.mu.Lock()
		if _, ok := m.playerRoom[playerID]; ok {
			m.mu.Unlock()
			return CreateRoomResult{Message: ReasonLeaveCurrentFirst}
		}

		id := m.nextRoomID
		m.nextRoomID++

		room := &Room{ID: id, Name: req.RoomName, MaxPlayers: req.MaxPlayers}
		if room.Name == "" {
			room.Name = defaultRoomName(id)
		}
		if room.MaxPlayers == 0 {
			room.MaxPlayers = DefaultMaxPlayers
		}
		if room.MaxPlayers > m.maxPlayers {
			room.MaxPlayers = m.maxPlayers
		}
		if playerName == "" {
			playerName = defaultPlayerName(playerID)
		}
		room.Players = append(room.Players, RoomPlayer{
			PlayerID:   playerID,
			PlayerName: playerName,
			IsHost:     true,
			Conn:       conn,
		})

		m.rooms[id] = room
		m.playerRoom[playerID] = id
		update = room.buildUpdate()
		result = CreateRoomResult{Success: true, RoomID: id, Message: ResultRoomCreated}
		m.mu.Unlock()
	}

	update.send()
	Log.Infof("player %d created room %d", playerID, result.RoomID)
	return result
}

// JoinRoom 以普通成员身份加入已有房间
func (m *RoomManager) JoinRoom(playerID uint32, playerName string, conn ConnRef, req JoinRoomRequest) JoinRoomResult {
	if playerID == 0 {
		return JoinRoomResult{RoomID: req.RoomID, Message: ReasonNotLoggedIn}
	}

	var update roomUpdate
	{
		m.mu.Lock()
		if _, ok := m.playerRoom[playerID]; ok {
			m.mu.Unlock()
			return JoinRoomResult{RoomID: req.RoomID, Message: ReasonAlreadyInRoom}
		}
		room, ok := m.rooms[req.RoomID]
		if !ok {
			m.mu.Unlock()
			return JoinRoomResult{RoomID: req.RoomID, Message: ReasonRoomNotFound}
		}
		if room.IsPlaying {
			m.mu.Unlock()
			return JoinRoomResult{RoomID: req.RoomID, Message: ReasonRoomPlaying}
		}
		if room.full() {
			m.mu.Unlock()
			return JoinRoomResult{RoomID: req.RoomID, Message: ReasonRoomFull}
		}

		if playerName == "" {
			playerName = defaultPlayerName(playerID)
		}
		room.Players = append(room.Players, RoomPlayer{
			PlayerID:   playerID,
			PlayerName: playerName,
			Conn:       conn,
		})
		m.playerRoom[playerID] = room.ID
		update = room.buildUpdate()
		m.mu.Unlock()
	}

	update.send()
	Log.Infof("player %d joined room %d", playerID, req.RoomID)
	return JoinRoomResult{Success: true, RoomID: req.RoomID, Message: ResultRoomJoined}
}

// LeaveRoom 主动离开房间
func (m *RoomManager) LeaveRoom(playerID uint32) LeaveRoomResult {
	m.mu.Lock()
	update, ok := m.detachLocked(playerID)
	m.mu.Unlock()

	if !ok {
		return LeaveRoomResult{Message: ReasonNotInRoom}
	}
	update.send()
	Log.Infof("player %d left room", playerID)
	return LeaveRoomResult{Success: true, Message: ResultRoomLeft}
}

// RemovePlayer 断线清理：与 LeaveRoom 相同的摘除逻辑，但不产生离开结果
func (m *RoomManager) RemovePlayer(playerID uint32) {
	m.mu.Lock()
	update, ok := m.detachLocked(playerID)
	m.mu.Unlock()

	if ok {
		update.send()
		Log.Debugf("player %d removed from room on disconnect", playerID)
	}
}

// SetReady 更新自己的准备状态
func (m *RoomManager) SetReady(playerID uint32, ready bool) SetReadyResult {
	var update roomUpdate
	{
		m.mu.Lock()
		room, ok := m.roomOfLocked(playerID)
		if !ok {
			m.mu.Unlock()
			return SetReadyResult{IsReady: ready, Message: ReasonNotInRoom}
		}
		if room.IsPlaying {
			m.mu.Unlock()
			return SetReadyResult{IsReady: ready, Message: ReasonRoomPlaying}
		}
		room.Players[room.indexOf(playerID)].IsReady = ready
		update = room.buildUpdate()
		m.mu.Unlock()
	}

	update.send()
	return SetReadyResult{Success: true, IsReady: ready, Message: ResultReadyUpdated}
}

// StartGame 房主开局：所有非房主成员均已准备。成功后房间锁定为游戏中并返回快照。
func (m *RoomManager) StartGame(playerID uint32) (StartGameResult, RoomSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.roomOfLocked(playerID)
	if !ok {
		return StartGameResult{Message: ReasonNotInRoom}, RoomSnapshot{}, false
	}
	if room.IsPlaying {
		return StartGameResult{RoomID: room.ID, Message: ReasonRoomPlaying}, RoomSnapshot{}, false
	}
	idx := room.indexOf(playerID)
	if !room.Players[idx].IsHost {
		return StartGameResult{RoomID: room.ID, Message: ReasonNotHost}, RoomSnapshot{}, false
	}
	for _, p := range room.Players {
		if !p.IsHost && !p.IsReady {
			return StartGameResult{RoomID: room.ID, Message: ReasonNotAllReady}, RoomSnapshot{}, false
		}
	}

	room.IsPlaying = true
	Log.Infof("room %d started by player %d with %d players", room.ID, playerID, len(room.Players))
	return StartGameResult{Success: true, RoomID: room.ID, Message: ResultGameStarted}, room.snapshot(), true
}

// RoomSnapshot 返回指定房间的有序成员快照
func (m *RoomManager) RoomSnapshot(roomID uint32) (RoomSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return RoomSnapshot{}, false
	}
	return room.snapshot(), true
}

// ListRooms 按房间 id 升序返回房间列表
func (m *RoomManager) ListRooms() []RoomInfo {
	m.mu.Lock()
	list := make([]RoomInfo, 0, len(m.rooms))
	for _, r := range m.rooms {
		list = append(list, r.info())
	}
	m.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].RoomID < list[j].RoomID })
	return list
}

// PlayerRoom 查询玩家所在房间
func (m *RoomManager) PlayerRoom(playerID uint32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.playerRoom[playerID]
	return id, ok
}

// roomOfLocked 解析玩家所在房间；索引指向已不存在的房间时顺手清理
func (m *RoomManager) roomOfLocked(playerID uint32) (*Room, bool) {
	id, ok := m.playerRoom[playerID]
	if !ok {
		return nil, false
	}
	room, ok := m.rooms[id]
	if !ok || room.indexOf(playerID) < 0 {
		delete(m.playerRoom, playerID)
		return nil, false
	}
	return room, true
}

// detachLocked 把玩家移出房间；房间变空即销毁，否则重选房主并生成广播
func (m *RoomManager) detachLocked(playerID uint32) (*roomUpdate, bool) {
	room, ok := m.roomOfLocked(playerID)
	if !ok {
		return nil, false
	}

	idx := room.indexOf(playerID)
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)
	delete(m.playerRoom, playerID)

	if len(room.Players) == 0 {
		delete(m.rooms, room.ID)
		Log.Infof("room %d destroyed", room.ID)
		return nil, true
	}

	room.ensureHost()
	u := room.buildUpdate()
	return &u, true
}
