package server

import "fmt"

// MessageType 信封中的消息种类
type MessageType uint16

const (
	MsgUnknown MessageType = iota
	MsgC2SLogin
	MsgS2CLoginResult
	MsgC2SHeartbeat
	MsgS2CHeartbeatResult
	MsgC2SCreateRoom
	MsgS2CCreateRoomResult
	MsgC2SJoinRoom
	MsgS2CJoinRoomResult
	MsgC2SLeaveRoom
	MsgS2CLeaveRoomResult
	MsgS2CRoomUpdate
	MsgC2SGetRoomList
	MsgS2CRoomList
	MsgC2SSetReady
	MsgS2CSetReadyResult
	MsgC2SStartGame
	MsgS2CStartGameResult
	MsgS2CGameStart
	MsgC2SPlayerInput
	MsgS2CGameStateSync
	MsgC2SRequestQuit
)

var messageTypeNames = map[MessageType]string{
	MsgC2SLogin:            "C2S_Login",
	MsgS2CLoginResult:      "S2C_LoginResult",
	MsgC2SHeartbeat:        "C2S_Heartbeat",
	MsgS2CHeartbeatResult:  "S2C_HeartbeatResult",
	MsgC2SCreateRoom:       "C2S_CreateRoom",
	MsgS2CCreateRoomResult: "S2C_CreateRoomResult",
	MsgC2SJoinRoom:         "C2S_JoinRoom",
	MsgS2CJoinRoomResult:   "S2C_JoinRoomResult",
	MsgC2SLeaveRoom:        "C2S_LeaveRoom",
	MsgS2CLeaveRoomResult:  "S2C_LeaveRoomResult",
	MsgS2CRoomUpdate:       "S2C_RoomUpdate",
	MsgC2SGetRoomList:      "C2S_GetRoomList",
	MsgS2CRoomList:         "S2C_RoomList",
	MsgC2SSetReady:         "C2S_SetReady",
	MsgS2CSetReadyResult:   "S2C_SetReadyResult",
	MsgC2SStartGame:        "C2S_StartGame",
	MsgS2CStartGameResult:  "S2C_StartGameResult",
	MsgS2CGameStart:        "S2C_GameStart",
	MsgC2SPlayerInput:      "C2S_PlayerInput",
	MsgS2CGameStateSync:    "S2C_GameStateSync",
	MsgC2SRequestQuit:      "C2S_RequestQuit",
}

func (t MessageType) String() string {
	if n, ok := messageTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("MessageType(%d)", uint16(t))
}

// Envelope 线上信封：种类 + 不透明载荷
type Envelope struct {
	Type    MessageType `msgpack:"t"`
	Payload []byte      `msgpack:"p"`
}

type LoginRequest struct {
	PlayerName string `msgpack:"player_name"`
}

type LoginResult struct {
	Success  bool   `msgpack:"success"`
	PlayerID uint32 `msgpack:"player_id"`
	Message  string `msgpack:"message"`
}

type Heartbeat struct {
	ClientTimeMs int64 `msgpack:"client_time_ms"`
}

type HeartbeatResult struct {
	ServerTimeMs      int64  `msgpack:"server_time_ms"`
	ClientTimeMs      int64  `msgpack:"client_time_ms"`
	OnlineConnections uint32 `msgpack:"online_connections"`
}

type CreateRoomRequest struct {
	RoomName   string `msgpack:"room_name"`
	MaxPlayers uint32 `msgpack:"max_players"`
}

type CreateRoomResult struct {
	Success bool   `msgpack:"success"`
	RoomID  uint32 `msgpack:"room_id"`
	Message string `msgpack:"message"`
}

type JoinRoomRequest struct {
	RoomID uint32 `msgpack:"room_id"`
}

type JoinRoomResult struct {
	Success bool   `msgpack:"success"`
	RoomID  uint32 `msgpack:"room_id"`
	Message string `msgpack:"message"`
}

type LeaveRoomRequest struct{}

type LeaveRoomResult struct {
	Success bool   `msgpack:"success"`
	Message string `msgpack:"message"`
}

// RoomPlayerInfo 房间成员广播条目
type RoomPlayerInfo struct {
	PlayerID   uint32 `msgpack:"player_id"`
	PlayerName string `msgpack:"player_name"`
	IsReady    bool   `msgpack:"is_ready"`
	IsHost     bool   `msgpack:"is_host"`
}

type RoomUpdate struct {
	RoomID  uint32           `msgpack:"room_id"`
	Players []RoomPlayerInfo `msgpack:"players"`
}

type GetRoomListRequest struct{}

type RoomInfo struct {
	RoomID         uint32 `msgpack:"room_id"`
	RoomName       string `msgpack:"room_name"`
	CurrentPlayers uint32 `msgpack:"current_players"`
	MaxPlayers     uint32 `msgpack:"max_players"`
	IsPlaying      bool   `msgpack:"is_playing"`
}

type RoomList struct {
	Rooms []RoomInfo `msgpack:"rooms"`
}

type SetReadyRequest struct {
	IsReady bool `msgpack:"is_ready"`
}

type SetReadyResult struct {
	Success bool   `msgpack:"success"`
	IsReady bool   `msgpack:"is_ready"`
	Message string `msgpack:"message"`
}

type StartGameRequest struct{}

type StartGameResult struct {
	Success bool   `msgpack:"success"`
	RoomID  uint32 `msgpack:"room_id"`
	Message string `msgpack:"message"`
}

// SceneInfo 场景基础参数（开局时下发）
type SceneInfo struct {
	SceneID       uint32  `msgpack:"scene_id"`
	Width         float64 `msgpack:"width"`
	Height        float64 `msgpack:"height"`
	TickRate      uint32  `msgpack:"tick_rate"`
	StateSyncRate uint32  `msgpack:"state_sync_rate"`
}

type GameStart struct {
	Scene        SceneInfo     `msgpack:"scene"`
	InitialState GameStateSync `msgpack:"initial_state"`
}

type Vector2 struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
}

// PlayerInput 每帧移动意图；DeltaMs 为客户端上报的帧间隔（仅记录，不参与积分）
type PlayerInput struct {
	InputSeq      uint32  `msgpack:"input_seq"`
	MoveDirection Vector2 `msgpack:"move_direction"`
	DeltaMs       uint32  `msgpack:"delta_ms,omitempty"`
}

type GameStateSync struct {
	RoomID       uint32        `msgpack:"room_id"`
	ServerTimeMs int64         `msgpack:"server_time_ms"`
	Tick         uint64        `msgpack:"tick"`
	FullSync     bool          `msgpack:"full_sync"`
	Players      []PlayerState `msgpack:"players"`
}

type RequestQuit struct{}
