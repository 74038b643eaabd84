package server

import "strconv"

// RoomPlayer 房间成员；Conn 为非拥有引用，会话可能先于房间消失
type RoomPlayer struct {
	PlayerID   uint32
	PlayerName string
	IsReady    bool
	IsHost     bool
	Conn       ConnRef
}

// Room 开局前的大厅分组；IsPlaying 一旦置位不再回退
type Room struct {
	ID         uint32
	Name       string
	MaxPlayers uint32
	IsPlaying  bool
	Players    []RoomPlayer // 按加入顺序
}

// RoomSnapshotPlayer 开局快照中的玩家条目
type RoomSnapshotPlayer struct {
	PlayerID   uint32
	PlayerName string
	Conn       ConnRef
}

// RoomSnapshot 交给场景管理器的房间快照
type RoomSnapshot struct {
	RoomID  uint32
	Players []RoomSnapshotPlayer
}

func defaultRoomName(id uint32) string { return "Room" + strconv.FormatUint(uint64(id), 10) }

func defaultPlayerName(id uint32) string { return "Player" + strconv.FormatUint(uint64(id), 10) }

func (r *Room) indexOf(playerID uint32) int {
	for i := range r.Players {
		if r.Players[i].PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (r *Room) full() bool {
	return r.MaxPlayers > 0 && uint32(len(r.Players)) >= r.MaxPlayers
}

// ensureHost 非空房间恰好一个房主：没有则由最早加入的成员接任
func (r *Room) ensureHost() {
	if len(r.Players) == 0 {
		return
	}
	hosts := 0
	for i := range r.Players {
		if r.Players[i].IsHost {
			hosts++
		}
	}
	if hosts == 1 {
		return
	}
	for i := range r.Players {
		r.Players[i].IsHost = i == 0
	}
}

func (r *Room) info() RoomInfo {
	return RoomInfo{
		RoomID:         r.ID,
		RoomName:       r.Name,
		CurrentPlayers: uint32(len(r.Players)),
		MaxPlayers:     r.MaxPlayers,
		IsPlaying:      r.IsPlaying,
	}
}

func (r *Room) snapshot() RoomSnapshot {
	snap := RoomSnapshot{RoomID: r.ID, Players: make([]RoomSnapshotPlayer, 0, len(r.Players))}
	for _, p := range r.Players {
		snap.Players = append(snap.Players, RoomSnapshotPlayer{PlayerID: p.PlayerID, PlayerName: p.PlayerName, Conn: p.Conn})
	}
	return snap
}

// roomUpdate 在锁内生成的不可变广播，解锁后再发送
type roomUpdate struct {
	message RoomUpdate
	targets []ConnRef
}

func (r *Room) buildUpdate() roomUpdate {
	u := roomUpdate{
		message: RoomUpdate{RoomID: r.ID, Players: make([]RoomPlayerInfo, 0, len(r.Players))},
		targets: make([]ConnRef, 0, len(r.Players)),
	}
	for _, p := range r.Players {
		u.message.Players = append(u.message.Players, RoomPlayerInfo{
			PlayerID:   p.PlayerID,
			PlayerName: p.PlayerName,
			IsReady:    p.IsReady,
			IsHost:     p.IsHost,
		})
		u.targets = append(u.targets, p.Conn)
	}
	return u
}

func (u *roomUpdate) send() {
	if u == nil || len(u.targets) == 0 {
		return
	}
	broadcast(u.targets, MsgS2CRoomUpdate, &u.message)
}
