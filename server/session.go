package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ResultLoginSuccess    = "login success"
	ReasonAlreadyLoggedIn = "already logged in"
)

// Session 单个客户端会话：持有登录身份，按消息种类分发，断线时清理房间与场景。
// 会话从不拥有游戏状态，只有临时身份和待发送队列。
type Session struct {
	id          string
	hub         *Hub
	transport   Transport
	out         *outboundQueue
	log         *zap.SugaredLogger
	readTimeout time.Duration

	mu         sync.Mutex
	playerID   uint32
	playerName string

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func newSession(hub *Hub, t Transport, readTimeout time.Duration) *Session {
	id := uuid.NewString()
	return &Session{
		id:          id,
		hub:         hub,
		transport:   t,
		out:         newOutboundQueue(MaxOutboundQueue),
		log:         Log.With("conn", id, "remote", t.RemoteAddr()),
		readTimeout: readTimeout,
		done:        make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// PlayerID 未登录时为 0
func (s *Session) PlayerID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

func (s *Session) identity() (uint32, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID, s.playerName
}

func (s *Session) Closed() bool { return s.closed.Load() }

// Done 写协程退出、底层连接关闭后关闭
func (s *Session) Done() <-chan struct{} { return s.done }

// Run 启动写协程并在当前协程阻塞读取，直到连接结束
func (s *Session) Run() {
	s.log.Debugf("session started")
	go func() {
		defer close(s.done)
		if err := s.out.writePump(s.transport); err != nil {
			s.log.Debugf("write failed: %v", err)
		}
		s.Close()
		_ = s.transport.Close()
	}()

	s.readLoop()
	s.Close()
}

// readLoop 帧错误与 I/O 错误致命；解码错误仅跳过该消息
func (s *Session) readLoop() {
	for !s.Closed() {
		if s.readTimeout > 0 {
			_ = s.transport.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		b, err := s.transport.ReadEnvelope()
		if err != nil {
			if s.Closed() {
				return
			}
			if errors.Is(err, ErrZeroLength) || errors.Is(err, ErrPacketTooLarge) {
				s.hub.Metrics.IncFramingError()
				s.log.Warnf("framing error, closing: %v", err)
			} else {
				s.log.Debugf("read ended: %v", err)
			}
			return
		}

		env, err := DecodeEnvelope(b)
		if err != nil {
			s.hub.Metrics.IncDecodeError()
			s.log.Warnf("skip malformed envelope: %v", err)
			continue
		}
		s.dispatch(env)
	}
}

func (s *Session) dispatch(env Envelope) {
	var err error
	switch env.Type {
	case MsgC2SLogin:
		err = s.handleLogin(env)
	case MsgC2SHeartbeat:
		err = s.handleHeartbeat(env)
	case MsgC2SCreateRoom:
		err = s.handleCreateRoom(env)
	case MsgC2SJoinRoom:
		err = s.handleJoinRoom(env)
	case MsgC2SLeaveRoom:
		err = s.handleLeaveRoom()
	case MsgC2SGetRoomList:
		err = s.Send(MsgS2CRoomList, &RoomList{Rooms: s.hub.Rooms.ListRooms()})
	case MsgC2SSetReady:
		err = s.handleSetReady(env)
	case MsgC2SStartGame:
		err = s.handleStartGame()
	case MsgC2SPlayerInput:
		err = s.handlePlayerInput(env)
	case MsgC2SRequestQuit:
		s.log.Infof("client requested quit")
		s.Close()
	default:
		s.log.Warnf("unknown message type %d ignored", uint16(env.Type))
	}

	s.recordError(env.Type, err)
}

// recordError 按失败来源计数：载荷解析失败记为 decode，回包失败记为 send。
// 会话已关闭或队列溢出由连接层处理，这里不再重复记录。
func (s *Session) recordError(t MessageType, err error) {
	switch {
	case err == nil, errors.Is(err, ErrSessionClosed), errors.Is(err, ErrOutboundOverflow):
		return
	case errors.Is(err, ErrMalformedPayload):
		s.hub.Metrics.IncDecodeError()
	default:
		s.hub.Metrics.IncSendError()
	}
	s.log.Warnf("handle %s: %v", t, err)
}

func (s *Session) handleLogin(env Envelope) error {
	req, err := DecodePayload[LoginRequest](env)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.playerID != 0 {
		pid := s.playerID
		s.mu.Unlock()
		return s.Send(MsgS2CLoginResult, &LoginResult{PlayerID: pid, Message: ReasonAlreadyLoggedIn})
	}
	pid := s.hub.allocPlayerID()
	name := req.PlayerName
	if name == "" {
		name = defaultPlayerName(pid)
	}
	s.playerID = pid
	s.playerName = name
	s.mu.Unlock()

	s.hub.Sessions.Register(pid, s)
	s.log.Infof("player %d login: %s", pid, name)
	return s.Send(MsgS2CLoginResult, &LoginResult{Success: true, PlayerID: pid, Message: ResultLoginSuccess})
}

func (s *Session) handleHeartbeat(env Envelope) error {
	hb, err := DecodePayload[Heartbeat](env)
	if err != nil {
		return err
	}
	return s.Send(MsgS2CHeartbeatResult, &HeartbeatResult{
		ServerTimeMs:      time.Now().UnixMilli(),
		ClientTimeMs:      hb.ClientTimeMs,
		OnlineConnections: uint32(s.hub.Connections()),
	})
}

func (s *Session) handleCreateRoom(env Envelope) error {
	req, err := DecodePayload[CreateRoomRequest](env)
	if err != nil {
		return err
	}
	pid, name := s.identity()
	if pid == 0 {
		return s.Send(MsgS2CCreateRoomResult, &CreateRoomResult{Message: ReasonNotLoggedIn})
	}
	res := s.hub.Rooms.CreateRoom(pid, name, s.hub.Sessions.Ref(pid), req)
	return s.Send(MsgS2CCreateRoomResult, &res)
}

func (s *Session) handleJoinRoom(env Envelope) error {
	req, err := DecodePayload[JoinRoomRequest](env)
	if err != nil {
		return err
	}
	pid, name := s.identity()
	if pid == 0 {
		return s.Send(MsgS2CJoinRoomResult, &JoinRoomResult{RoomID: req.RoomID, Message: ReasonNotLoggedIn})
	}
	res := s.hub.Rooms.JoinRoom(pid, name, s.hub.Sessions.Ref(pid), req)
	return s.Send(MsgS2CJoinRoomResult, &res)
}

func (s *Session) handleLeaveRoom() error {
	pid := s.PlayerID()
	if pid == 0 {
		return s.Send(MsgS2CLeaveRoomResult, &LeaveRoomResult{Message: ReasonNotLoggedIn})
	}
	res := s.hub.Rooms.LeaveRoom(pid)
	if res.Success {
		s.hub.Scenes.RemovePlayer(pid)
	}
	return s.Send(MsgS2CLeaveRoomResult, &res)
}

func (s *Session) handleSetReady(env Envelope) error {
	req, err := DecodePayload[SetReadyRequest](env)
	if err != nil {
		return err
	}
	pid := s.PlayerID()
	if pid == 0 {
		return s.Send(MsgS2CSetReadyResult, &SetReadyResult{IsReady: req.IsReady, Message: ReasonNotLoggedIn})
	}
	res := s.hub.Rooms.SetReady(pid, req.IsReady)
	return s.Send(MsgS2CSetReadyResult, &res)
}

func (s *Session) handleStartGame() error {
	pid := s.PlayerID()
	if pid == 0 {
		return s.Send(MsgS2CStartGameResult, &StartGameResult{Message: ReasonNotLoggedIn})
	}
	s.hub.StartGame(pid, s)
	return nil
}

// handlePlayerInput 输入不单独确认，效果体现在后续状态同步中
func (s *Session) handlePlayerInput(env Envelope) error {
	in, err := DecodePayload[PlayerInput](env)
	if err != nil {
		return err
	}
	pid := s.PlayerID()
	if pid == 0 {
		return nil
	}
	if _, ok := s.hub.Scenes.HandlePlayerInput(pid, in); !ok {
		s.log.Debugf("input seq=%d rejected", in.InputSeq)
	}
	return nil
}

// Send 编码后追加到发送队列，不阻塞调用方
func (s *Session) Send(t MessageType, payload any) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	b, err := EncodeEnvelope(t, payload)
	if err != nil {
		return err
	}
	return s.SendEncoded(b)
}

func (s *Session) SendEncoded(b []byte) error {
	err := s.out.push(b)
	if errors.Is(err, ErrOutboundOverflow) {
		s.log.Warnf("outbound queue overflow, closing stalled connection")
		go s.Close()
	}
	return err
}

// Close 断线清理，只执行一次：移出房间与场景、注销会话、停止写队列并唤醒读协程
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		pid := s.PlayerID()
		if pid != 0 {
			s.hub.RemovePlayer(pid)
			s.hub.Sessions.Unregister(pid, s)
		}
		s.hub.connections.Add(-1)

		s.out.close()
		_ = s.transport.SetReadDeadline(time.Now())
		s.log.Infof("session closed")
	})
}
